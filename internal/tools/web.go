// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tools

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"

	"github.com/toolshop-ai/toolshop/internal/toolerr"
)

// ErrResponseTooLarge is returned when a body exceeds MaxBodyBytes.
var ErrResponseTooLarge = errors.New("response body too large")

// BrowseExecutor fetches a web page.
type BrowseExecutor struct {
	// Client is the HTTP client (default: one with Timeout)
	Client *http.Client

	Timeout      time.Duration
	UserAgent    string
	MaxBodyBytes int64

	// ConvertMarkdown turns HTML responses into markdown
	ConvertMarkdown bool
}

// BrowseTool returns the browse tool.
func BrowseTool(executor *BrowseExecutor) *Tool {
	return &Tool{
		Name:        NameBrowse,
		Description: `Fetch the contents of a webpage. HTML pages are returned as markdown.`,
		Schema: Schema{Parameters: []Parameter{
			{Name: "url", Type: "string", Required: true, Description: "The URL of the webpage to fetch."},
		}},
		ReturnResult: true,
		Executor:     executor,
	}
}

// ValidateArgs accepts only absolute http and https URLs.
func (e *BrowseExecutor) ValidateArgs(params map[string]interface{}) error {
	raw := getStringParam(params, "url", "")
	u, err := url.Parse(raw)
	if err != nil {
		return toolerr.Wrap(toolerr.ErrInvalidArgument, NameBrowse, "", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return toolerr.New(toolerr.ErrInvalidArgument, NameBrowse, "", "unsupported URL scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return toolerr.New(toolerr.ErrInvalidArgument, NameBrowse, "", "URL has no host: %s", raw)
	}
	return nil
}

// Execute performs the GET and returns the body.
func (e *BrowseExecutor) Execute(ctx context.Context, params map[string]interface{}) (Result, error) {
	rawURL := getStringParam(params, "url", "")

	body, contentType, err := e.fetch(ctx, rawURL)
	if err != nil {
		return Result{}, err
	}

	if e.ConvertMarkdown && strings.Contains(contentType, "text/html") {
		markdown, err := htmlToMarkdown(body)
		if err != nil {
			return Result{}, fmt.Errorf("failed to convert %s: %w", rawURL, err)
		}
		return Result{Output: markdown}, nil
	}
	return Result{Output: body}, nil
}

func (e *BrowseExecutor) fetch(ctx context.Context, rawURL string) (string, string, error) {
	client := e.Client
	if client == nil {
		timeout := e.Timeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", "", toolerr.Wrap(toolerr.ErrInvalidArgument, NameBrowse, "", err)
	}
	if e.UserAgent != "" {
		req.Header.Set("User-Agent", e.UserAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain;q=0.9,*/*;q=0.8")

	resp, err := client.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", "", fmt.Errorf("fetch %s: unexpected status %s", rawURL, resp.Status)
	}

	limit := e.MaxBodyBytes
	if limit <= 0 {
		limit = 5 * 1024 * 1024
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return "", "", fmt.Errorf("read %s: %w", rawURL, err)
	}
	if int64(len(data)) > limit {
		return "", "", ErrResponseTooLarge
	}

	return string(data), resp.Header.Get("Content-Type"), nil
}

// htmlToMarkdown strips non-content elements and converts the page body to
// markdown, headed by the page title when there is one.
func htmlToMarkdown(page string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return "", err
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())
	doc.Find("script, style, noscript, iframe, svg, template").Remove()

	root := doc.Find("body").First()
	if root.Length() == 0 {
		root = doc.Selection
	}
	html, err := root.Html()
	if err != nil {
		return "", err
	}

	converter := md.NewConverter("", true, nil)
	markdown, err := converter.ConvertString(html)
	if err != nil {
		return "", err
	}
	markdown = strings.TrimSpace(markdown)

	if title != "" && !strings.HasPrefix(markdown, "# "+title) {
		markdown = "# " + title + "\n\n" + markdown
	}
	return markdown + "\n", nil
}
