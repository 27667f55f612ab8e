package remote

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"kakeibo/internal/remote/memory"
)

func doPost(t *testing.T, h http.Handler, body string) mutationResponse {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp mutationResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return resp
}

func TestHandlerRejectsMalformedAndUnknown(t *testing.T) {
	h := NewHandler(memory.New())

	cases := []struct {
		name string
		body string
	}{
		{"malformed json", `{`},
		{"unknown action", `{"action":"explode"}`},
		{"add without record", `{"action":"add"}`},
		{"update without id", `{"action":"update","record":{"date":"2024-01-01"}}`},
		{"delete without id", `{"action":"delete"}`},
		{"sync without records", `{"action":"sync"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := doPost(t, h, tc.body)
			if resp.Success {
				t.Fatal("expected success=false")
			}
			if resp.Error == "" {
				t.Fatal("expected error message")
			}
		})
	}
}

func TestHandlerSyncReportsCount(t *testing.T) {
	h := NewHandler(memory.New())

	var buf bytes.Buffer
	buf.WriteString(`{"action":"sync","records":[`)
	buf.WriteString(`{"id":"a","date":"2024-01-01","category":"食費","paymentMethod":"現金","amount":10,"memo":""},`)
	buf.WriteString(`{"id":"b","date":"2024-01-02","category":"交通","paymentMethod":"IC","amount":20,"memo":""}]}`)

	resp := doPost(t, h, buf.String())
	if !resp.Success || resp.Result == nil || resp.Result.Synced != 2 {
		t.Fatalf("unexpected response: %+v", resp)
	}

	// Empty array is a valid sync and clears the store.
	resp = doPost(t, h, `{"action":"sync","records":[]}`)
	if !resp.Success || resp.Result == nil || resp.Result.Synced != 0 {
		t.Fatalf("unexpected response for empty sync: %+v", resp)
	}
}

func TestHandlerFetchEnvelope(t *testing.T) {
	store := memory.New()
	h := NewHandler(store)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp fetchResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Success {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestHandlerMethodNotAllowed(t *testing.T) {
	h := NewHandler(memory.New())
	req := httptest.NewRequest(http.MethodPut, "/", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", w.Code)
	}
}
