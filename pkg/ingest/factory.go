package ingest

import (
	"encoding/json"
	"fmt"
)

// New creates an adapter based on kind and generic configuration map.
// This is the central extension point for adding new source types.
//
// Supported kinds:
//   - "http": Generic HTTP adapter
//   - "csv":  Cycler export file adapter
//
// Returns error if kind is unknown or required fields are missing.
func New(kind string, config map[string]string) (Adapter, error) {
	switch kind {
	case "http":
		return newHTTP(config)
	case "csv":
		return newCSV(config)
	default:
		return nil, fmt.Errorf("unknown source kind: %s (must be http or csv)", kind)
	}
}

// newHTTP creates a generic HTTP adapter from generic config.
func newHTTP(config map[string]string) (Adapter, error) {
	url := config["url"]
	if url == "" {
		return nil, fmt.Errorf("http source requires 'url' config")
	}

	rowsPath := config["rowsPath"]
	if rowsPath == "" {
		return nil, fmt.Errorf("http source requires 'rowsPath' config")
	}

	method := config["method"]
	if method == "" {
		method = "GET"
	}

	var headers map[string]string
	if headersJSON := config["headers"]; headersJSON != "" {
		if err := json.Unmarshal([]byte(headersJSON), &headers); err != nil {
			return nil, fmt.Errorf("invalid 'headers' JSON: %w", err)
		}
	}

	var templateVars map[string]string
	if varsJSON := config["templateVars"]; varsJSON != "" {
		if err := json.Unmarshal([]byte(varsJSON), &templateVars); err != nil {
			return nil, fmt.Errorf("invalid 'templateVars' JSON: %w", err)
		}
	}

	return &HTTPAdapter{
		URL:          url,
		Method:       method,
		Headers:      headers,
		Body:         config["body"],
		RowsPath:     rowsPath,
		Battery:      config["battery"],
		TemplateVars: templateVars,
	}, nil
}

// newCSV creates a file adapter from generic config.
func newCSV(config map[string]string) (Adapter, error) {
	path := config["path"]
	if path == "" {
		return nil, fmt.Errorf("csv source requires 'path' config")
	}

	var comma rune
	if d := config["delimiter"]; d != "" {
		runes := []rune(d)
		if len(runes) != 1 {
			return nil, fmt.Errorf("invalid 'delimiter': %q (must be one character)", d)
		}
		comma = runes[0]
	}

	return &CSVAdapter{Path: path, Comma: comma}, nil
}
