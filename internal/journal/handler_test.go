package journal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func newTestEcho(store *Store, memory *Memory) *echo.Echo {
	e := echo.New()
	NewHandler(store, memory, nil).RegisterRoutes(e)
	return e
}

func TestHandler_ListSummaries(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	store.RecordSummary(ctx, &SummaryRecord{SessionID: "s1", Text: "kitchen"})
	store.RecordSummary(ctx, &SummaryRecord{SessionID: "s2", Text: "garden"})

	e := newTestEcho(store, nil)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/summaries?session_id=s1", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp struct {
		Total int              `json:"total"`
		Items []*SummaryRecord `json:"items"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Total != 1 || resp.Items[0].Text != "kitchen" {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestHandler_Errors(t *testing.T) {
	store := setupTestStore(t)

	tests := []struct {
		name   string
		store  *Store
		path   string
		status int
	}{
		{"bad limit", store, "/api/v1/searches?limit=abc", http.StatusBadRequest},
		{"missing summary", store, "/api/v1/summaries/nope", http.StatusNotFound},
		{"journal disabled", nil, "/api/v1/intents", http.StatusServiceUnavailable},
		{"memory disabled", store, "/api/v1/memory?q=kitchen", http.StatusServiceUnavailable},
		{"empty alerts", store, "/api/v1/alerts", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEcho(tt.store, nil)
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
			if rec.Code != tt.status {
				t.Errorf("expected %d, got %d: %s", tt.status, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestHandler_Recall(t *testing.T) {
	client := &fakePoints{exists: true}
	client.results = scored("earlier there was a red sofa")
	memory := newMemory(client, &fakeEmbedder{}, "", nil)

	e := newTestEcho(nil, memory)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/memory", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without query, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/memory?q=sofa", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var items []Recollection
	json.Unmarshal(rec.Body.Bytes(), &items)
	if len(items) != 1 || items[0].Text != "earlier there was a red sofa" {
		t.Errorf("unexpected items %+v", items)
	}
}
