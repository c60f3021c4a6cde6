package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"text/template"
	"time"

	"github.com/tidwall/gjson"

	"github.com/cellwatch/cellwatch/pkg/normalize"
)

// HTTPAdapter is a generic connector that calls any REST API endpoint and
// extracts a table of cycle records using a JSON path expression.
//
// It supports:
//   - Configurable HTTP method (GET, POST, etc.)
//   - Template-based request body with variables: {{.Battery}}, {{.NowRFC3339}}
//   - Custom headers including authentication (Bearer tokens, API keys, etc.)
//   - JSON path extraction of the record array using gjson syntax
//
// Example configuration for a cycler data service:
//
//	adapter := &HTTPAdapter{
//	    URL: "https://cycler.example.com/api/export",
//	    Method: "POST",
//	    Headers: map[string]string{
//	        "Authorization": "Bearer {{.Token}}",
//	        "Content-Type": "application/json",
//	    },
//	    Body: `{"battery": "{{.Battery}}"}`,
//	    RowsPath: "data.records",
//	}
type HTTPAdapter struct {
	// URL is the endpoint to call (required)
	URL string

	// Method is the HTTP method (GET, POST, etc.). Defaults to GET if empty.
	Method string

	// Headers are custom HTTP headers to include in the request.
	// Values can use template variables like {{.Token}}.
	Headers map[string]string

	// Body is the request body template (for POST/PUT). Supports variables:
	//   {{.Battery}}    - the battery identifier
	//   {{.NowRFC3339}} - the collection time as an RFC3339 string
	Body string

	// RowsPath is the gjson path to the array of record objects in the
	// response, e.g. "data.records". Each element becomes one row; every
	// field is kept as its string form so the normalizer can parse it.
	RowsPath string

	// Battery is the identifier substituted into templates.
	Battery string

	// HTTPClient is optional; if nil a default client with timeout is used.
	HTTPClient *http.Client

	// TemplateVars are custom variables available in Body and Headers
	// templates. Use this to pass tokens, API keys, etc.
	TemplateVars map[string]string
}

func (h *HTTPAdapter) Name() string { return "http" }

// Collect implements Adapter. It calls the configured endpoint and shapes
// the record array at RowsPath into a RecordSet. Column order follows the
// document order of the first record, with fields that only appear in later
// records appended as they are first seen.
func (h *HTTPAdapter) Collect(ctx context.Context) (*normalize.RecordSet, error) {
	if h.URL == "" {
		return nil, errors.New("http adapter: URL is required")
	}
	if h.RowsPath == "" {
		return nil, errors.New("http adapter: RowsPath is required")
	}

	templateData := map[string]any{
		"Battery":    h.Battery,
		"NowRFC3339": time.Now().UTC().Format(time.RFC3339),
	}
	for k, v := range h.TemplateVars {
		templateData[k] = v
	}

	method := h.Method
	if method == "" {
		method = http.MethodGet
	}

	var bodyReader io.Reader
	if h.Body != "" {
		renderedBody, err := renderTemplate(h.Body, templateData)
		if err != nil {
			return nil, fmt.Errorf("render body template: %w", err)
		}
		bodyReader = bytes.NewBufferString(renderedBody)
	}

	cli := h.HTTPClient
	if cli == nil {
		cli = &http.Client{Timeout: 10 * time.Second}
	}

	req, err := http.NewRequestWithContext(ctx, method, h.URL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	for key, value := range h.Headers {
		rendered, err := renderTemplate(value, templateData)
		if err != nil {
			return nil, fmt.Errorf("render header %s: %w", key, err)
		}
		req.Header.Set(key, rendered)
	}

	resp, err := cli.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("http status %d: %s", resp.StatusCode, string(body))
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	records := gjson.GetBytes(respBody, h.RowsPath)
	if !records.Exists() {
		return nil, fmt.Errorf("rows path %q not found in response", h.RowsPath)
	}
	if !records.IsArray() {
		return nil, fmt.Errorf("rows path %q is not an array", h.RowsPath)
	}

	var columns []string
	seen := make(map[string]bool)
	rows := make([]normalize.Row, 0, len(records.Array()))

	records.ForEach(func(_, record gjson.Result) bool {
		row := make(normalize.Row)
		record.ForEach(func(key, value gjson.Result) bool {
			name := key.String()
			if !seen[name] {
				seen[name] = true
				columns = append(columns, name)
			}
			row[name] = value.String()
			return true
		})
		rows = append(rows, row)
		return true
	})

	return &normalize.RecordSet{Columns: columns, Rows: rows}, nil
}

// renderTemplate renders a text template with the given data
func renderTemplate(tmplStr string, data map[string]any) (string, error) {
	if !strings.Contains(tmplStr, "{{") {
		return tmplStr, nil
	}

	tmpl, err := template.New("").Parse(tmplStr)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}

	return buf.String(), nil
}
