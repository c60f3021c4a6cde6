package ingest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHTTPAdapter_BasicGET(t *testing.T) {
	// Fake cycler API returning an array of cycle records
	json := `{
        "data": {
            "records": [
                {"Cycle_Number": "1", "Volt": "4.1", "Amp": "1.2", "Cap_mAh": "2400"},
                {"Cycle_Number": "1", "Volt": "3.9", "Amp": "-1.2", "Cap_mAh": "2390"},
                {"Cycle_Number": "2", "Volt": "4.0", "Amp": "1.2", "Cap_mAh": "2385"}
            ]
        }
    }`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("expected GET, got %s", r.Method)
		}
		if r.Header.Get("Accept") != "application/json" {
			t.Errorf("expected Accept: application/json header")
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, json)
	}))
	defer server.Close()

	adapter := &HTTPAdapter{
		URL:      server.URL,
		Method:   "GET",
		RowsPath: "data.records",
	}

	rs, err := adapter.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect error: %v", err)
	}
	if rs == nil {
		t.Fatalf("expected non-nil RecordSet")
	}
	if len(rs.Rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rs.Rows))
	}

	wantColumns := []string{"Cycle_Number", "Volt", "Amp", "Cap_mAh"}
	if len(rs.Columns) != len(wantColumns) {
		t.Fatalf("expected %d columns, got %v", len(wantColumns), rs.Columns)
	}
	for i, col := range wantColumns {
		if rs.Columns[i] != col {
			t.Errorf("column %d: expected %s, got %s", i, col, rs.Columns[i])
		}
	}

	if got := rs.Rows[1]["Amp"]; got != "-1.2" {
		t.Errorf("row 1 Amp: expected -1.2, got %s", got)
	}
}

func TestHTTPAdapter_POST_WithBody(t *testing.T) {
	receivedBody := ""
	receivedAuth := ""
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}

		body, _ := io.ReadAll(r.Body)
		receivedBody = string(body)
		receivedAuth = r.Header.Get("Authorization")

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"records": [{"voltage": 3.7, "current": 0.0, "capacity": 2200}]}`)
	}))
	defer server.Close()

	adapter := &HTTPAdapter{
		URL:    server.URL,
		Method: "POST",
		Body:   `{"battery": "{{.Battery}}"}`,
		Headers: map[string]string{
			"Content-Type":  "application/json",
			"Authorization": "Bearer {{.Token}}",
		},
		RowsPath:     "records",
		Battery:      "pack-042",
		TemplateVars: map[string]string{"Token": "secret123"},
	}

	rs, err := adapter.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect error: %v", err)
	}
	if len(rs.Rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rs.Rows))
	}

	if receivedBody != `{"battery": "pack-042"}` {
		t.Errorf("unexpected body: %s", receivedBody)
	}
	if receivedAuth != "Bearer secret123" {
		t.Errorf("unexpected Authorization header: %s", receivedAuth)
	}

	// Numeric JSON values arrive as their string form for the normalizer.
	if got := rs.Rows[0]["capacity"]; got != "2200" {
		t.Errorf("capacity: expected 2200, got %s", got)
	}
}

func TestHTTPAdapter_RaggedRecords(t *testing.T) {
	// A field that only appears in later records is appended to the
	// column order as first seen.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"records": [
            {"voltage": "4.1", "current": "1.0"},
            {"voltage": "4.0", "current": "0.9", "temp": "31.5"}
        ]}`)
	}))
	defer server.Close()

	adapter := &HTTPAdapter{URL: server.URL, RowsPath: "records"}

	rs, err := adapter.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect error: %v", err)
	}
	want := []string{"voltage", "current", "temp"}
	if len(rs.Columns) != 3 {
		t.Fatalf("expected 3 columns, got %v", rs.Columns)
	}
	for i, col := range want {
		if rs.Columns[i] != col {
			t.Errorf("column %d: expected %s, got %s", i, col, rs.Columns[i])
		}
	}
	if _, ok := rs.Rows[0]["temp"]; ok {
		t.Error("row 0 should not carry temp")
	}
}

func TestHTTPAdapter_Errors(t *testing.T) {
	tests := []struct {
		name    string
		adapter HTTPAdapter
		handler http.HandlerFunc
		wantErr string
	}{
		{
			name:    "missing URL",
			adapter: HTTPAdapter{RowsPath: "records"},
			wantErr: "URL is required",
		},
		{
			name:    "missing RowsPath",
			adapter: HTTPAdapter{URL: "http://example.invalid"},
			wantErr: "RowsPath is required",
		},
		{
			name:    "non-200 status",
			adapter: HTTPAdapter{RowsPath: "records"},
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "nope", http.StatusForbidden)
			},
			wantErr: "http status 403",
		},
		{
			name:    "rows path missing",
			adapter: HTTPAdapter{RowsPath: "records"},
			handler: func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `{"other": []}`)
			},
			wantErr: "not found in response",
		},
		{
			name:    "rows path not an array",
			adapter: HTTPAdapter{RowsPath: "records"},
			handler: func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `{"records": {"voltage": "4.1"}}`)
			},
			wantErr: "not an array",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adapter := tt.adapter
			if tt.handler != nil {
				server := httptest.NewServer(tt.handler)
				defer server.Close()
				adapter.URL = server.URL
			}

			_, err := adapter.Collect(context.Background())
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not contain %q", err.Error(), tt.wantErr)
			}
		})
	}
}
