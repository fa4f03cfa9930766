// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tools

// =============================================================================
// TOOL MANIFEST
// =============================================================================

// ToolInfo is the serializable description of a tool, used by the HTTP API
// and by "toolshop tools --format json|yaml".
type ToolInfo struct {
	Name                string      `json:"name" yaml:"name"`
	Description         string      `json:"description" yaml:"description"`
	Usage               string      `json:"usage,omitempty" yaml:"usage,omitempty"`
	RequireConfirmation bool        `json:"require_confirmation" yaml:"require_confirmation"`
	ReturnResult        bool        `json:"return_result" yaml:"return_result"`
	Parameters          []ParamInfo `json:"parameters" yaml:"parameters"`
}

// ParamInfo describes one parameter of a ToolInfo.
type ParamInfo struct {
	Name        string      `json:"name" yaml:"name"`
	Type        string      `json:"type" yaml:"type"`
	Items       string      `json:"items,omitempty" yaml:"items,omitempty"`
	Required    bool        `json:"required" yaml:"required"`
	Description string      `json:"description" yaml:"description"`
	Default     interface{} `json:"default,omitempty" yaml:"default,omitempty"`
}

// Info returns the manifest entry for t.
func (t *Tool) Info() ToolInfo {
	params := make([]ParamInfo, 0, len(t.Schema.Parameters))
	for _, p := range t.Schema.Parameters {
		params = append(params, ParamInfo{
			Name:        p.Name,
			Type:        p.Type,
			Items:       p.Items,
			Required:    p.Required,
			Description: p.Description,
			Default:     p.Default,
		})
	}
	return ToolInfo{
		Name:                t.Name,
		Description:         t.Description,
		Usage:               t.Usage,
		RequireConfirmation: t.RequireConfirmation,
		ReturnResult:        t.ReturnResult,
		Parameters:          params,
	}
}

// Manifest returns the manifest of every registered tool in name order.
func (r *Registry) Manifest() []ToolInfo {
	all := r.All()
	infos := make([]ToolInfo, 0, len(all))
	for _, t := range all {
		infos = append(infos, t.Info())
	}
	return infos
}
