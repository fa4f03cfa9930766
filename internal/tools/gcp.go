// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tools

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"cloud.google.com/go/bigquery"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"

	"github.com/toolshop-ai/toolshop/internal/toolerr"
)

// CredentialsEnv names the service account key file used by the GCP tools.
const CredentialsEnv = "GOOGLE_APPLICATION_CREDENTIALS"

// =============================================================================
// SCHEMA SOURCE
// =============================================================================

// SchemaField is one column of a table schema.
type SchemaField struct {
	Name        string
	Type        string
	Description string
}

// SchemaSource looks up table schemas.
type SchemaSource interface {
	TableIDs(ctx context.Context, project, dataset string) ([]string, error)
	TableSchema(ctx context.Context, project, dataset, table string) ([]SchemaField, error)
	Close() error
}

// SchemaSourceFactory opens a SchemaSource billed to billingProject.
type SchemaSourceFactory func(ctx context.Context, billingProject string) (SchemaSource, error)

// BigQuerySource is a SchemaSource backed by the BigQuery API.
type BigQuerySource struct {
	client *bigquery.Client
}

// NewBigQuerySource opens a BigQuery client billed to billingProject.
func NewBigQuerySource(ctx context.Context, billingProject string) (SchemaSource, error) {
	client, err := bigquery.NewClient(ctx, billingProject)
	if err != nil {
		return nil, fmt.Errorf("failed to create bigquery client: %w", err)
	}
	return &BigQuerySource{client: client}, nil
}

// TableIDs lists the tables of a dataset.
func (s *BigQuerySource) TableIDs(ctx context.Context, project, dataset string) ([]string, error) {
	it := s.client.DatasetInProject(project, dataset).Tables(ctx)
	var ids []string
	for {
		t, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list tables of %s.%s: %w", project, dataset, err)
		}
		ids = append(ids, t.TableID)
	}
	return ids, nil
}

// TableSchema returns the top-level fields of a table.
func (s *BigQuerySource) TableSchema(ctx context.Context, project, dataset, table string) ([]SchemaField, error) {
	md, err := s.client.DatasetInProject(project, dataset).Table(table).Metadata(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get metadata of %s.%s.%s: %w", project, dataset, table, err)
	}
	fields := make([]SchemaField, 0, len(md.Schema))
	for _, f := range md.Schema {
		fields = append(fields, SchemaField{
			Name:        f.Name,
			Type:        string(f.Type),
			Description: f.Description,
		})
	}
	return fields, nil
}

// Close closes the client.
func (s *BigQuerySource) Close() error {
	return s.client.Close()
}

// =============================================================================
// GET BIG QUERY TABLE SCHEMA
// =============================================================================

// BigQuerySchemaExecutor renders table schemas.
type BigQuerySchemaExecutor struct {
	// Open creates the schema source (default NewBigQuerySource)
	Open SchemaSourceFactory
}

// BigQuerySchemaTool returns the get_big_query_table_schema tool.
func BigQuerySchemaTool(executor *BigQuerySchemaExecutor) *Tool {
	return &Tool{
		Name: NameBigQuerySchema,
		Description: `Given a fully-specified table, retrieve its schema. Use "*" as the table
to get the schema of every table in the dataset. Each table is listed by its
full name followed by one tab-separated line per column.`,
		Usage: `get_big_query_table_schema(project="bigquery-public-data", dataset="stackoverflow", table="comments", billing_project="YOUR_BILLING_PROJECT")`,
		Schema: Schema{Parameters: []Parameter{
			{Name: "project", Type: "string", Required: true, Description: "Project of the table"},
			{Name: "dataset", Type: "string", Required: true, Description: "Dataset of the table"},
			{Name: "table", Type: "string", Required: true, Description: `Table name or "*" to get all tables in the dataset.`},
			{Name: "billing_project", Type: "string", Required: true, Description: "The project to be billed for the query."},
			{Name: "include_description", Type: "boolean", Description: "Whether to include the description of the column. Defaults to False.", Default: false},
		}},
		ReturnResult: true,
		Executor:     executor,
	}
}

// Execute looks up and renders the schemas.
func (e *BigQuerySchemaExecutor) Execute(ctx context.Context, params map[string]interface{}) (Result, error) {
	project := getStringParam(params, "project", "")
	dataset := getStringParam(params, "dataset", "")
	table := getStringParam(params, "table", "")
	billing := getStringParam(params, "billing_project", "")
	withDesc := getBoolParam(params, "include_description", false)

	open := e.Open
	if open == nil {
		open = NewBigQuerySource
	}
	src, err := open(ctx, billing)
	if err != nil {
		return Result{}, err
	}
	defer src.Close()

	tables := []string{table}
	if table == "*" {
		if tables, err = src.TableIDs(ctx, project, dataset); err != nil {
			return Result{}, err
		}
	}

	var b strings.Builder
	for _, t := range tables {
		fields, err := src.TableSchema(ctx, project, dataset, t)
		if err != nil {
			return Result{}, err
		}
		fmt.Fprintf(&b, "\n%s.%s.%s", project, dataset, t)
		for _, f := range fields {
			fmt.Fprintf(&b, "\n\t%s\t%s", f.Name, f.Type)
			if withDesc {
				fmt.Fprintf(&b, "\t%s", f.Description)
			}
		}
	}
	return Result{Output: b.String(), LinesCount: len(tables)}, nil
}

// =============================================================================
// AUTHENTICATE TO GCP
// =============================================================================

// AuthenticateGCPExecutor activates the service account named by
// GOOGLE_APPLICATION_CREDENTIALS for the gcloud and bq CLIs.
type AuthenticateGCPExecutor struct {
	Shell  string
	Logger *zap.Logger
}

// AuthenticateGCPTool returns the authenticate_to_gcp tool. It always
// requires confirmation.
func AuthenticateGCPTool(executor *AuthenticateGCPExecutor) *Tool {
	return &Tool{
		Name: NameAuthGCP,
		Description: `You must run this tool once before using any google cloud CLI tools such as
gcloud or bq.`,
		RequireConfirmation: true,
		ReturnResult:        true,
		Executor:            executor,
	}
}

// ValidateArgs requires the credentials variable.
func (e *AuthenticateGCPExecutor) ValidateArgs(params map[string]interface{}) error {
	if os.Getenv(CredentialsEnv) == "" {
		return toolerr.New(toolerr.ErrPrecondition, NameAuthGCP, "",
			"You must set the %s environment variable to the path of your service account key file.", CredentialsEnv)
	}
	return nil
}

// Execute runs gcloud auth activate-service-account.
func (e *AuthenticateGCPExecutor) Execute(ctx context.Context, params map[string]interface{}) (Result, error) {
	output, code, err := runShell(ctx, shellRun{
		shell:   e.Shell,
		command: "gcloud auth activate-service-account --key-file=$" + CredentialsEnv,
		logger:  e.Logger,
	})
	if err != nil {
		return Result{}, err
	}
	if code != 0 {
		return Result{}, fmt.Errorf("gcloud exited with code %d: %s", code, strings.TrimSpace(output))
	}
	return Result{Output: output}, nil
}
