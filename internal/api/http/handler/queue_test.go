package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"syncline/internal/model"
	"syncline/internal/queue"
	"syncline/internal/store"
)

func newQueueRouter(t *testing.T) (*gin.Engine, *queue.Manager) {
	t.Helper()

	gin.SetMode(gin.TestMode)

	s, err := store.Open(filepath.Join(t.TempDir(), "queue.db"))
	if err != nil {
		t.Fatalf("store.Open() error = %v", err)
	}

	t.Cleanup(func() { _ = s.Close() })

	manager := queue.NewManager(zap.NewNop(), s)
	hdl := NewQueueHandler(zap.NewNop(), manager)

	router := gin.New()

	group := router.Group("/api/queue")
	group.POST("", hdl.Enqueue)
	group.GET("/:tenant/pending", hdl.ListPending)
	group.GET("/:tenant/failed", hdl.ListFailed)
	group.POST("/records/:id/requeue", hdl.Requeue)
	group.DELETE("/records/:id", hdl.Discard)

	return router, manager
}

func postJSON(router *gin.Engine, path string, body any) *httptest.ResponseRecorder {
	data, _ := json.Marshal(body)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	return rec
}

func getJSON(router *gin.Engine, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	return rec
}

func TestEnqueueEndpoint(t *testing.T) {
	router, _ := newQueueRouter(t)

	rec := postJSON(router, "/api/queue", model.EnqueueRequest{
		TenantID: "acme",
		Endpoint: "contacts",
		Method:   model.MethodCreate,
		Payload:  []byte(`{"name":"Ada"}`),
	})

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, http.StatusCreated, rec.Body)
	}

	var resp struct {
		Status string            `json:"status"`
		Data   map[string]string `json:"data"`
	}

	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}

	if resp.Data["id"] == "" {
		t.Fatal("response carries no record id")
	}
}

func TestEnqueueEndpointRejectsInvalidRequest(t *testing.T) {
	router, _ := newQueueRouter(t)

	tests := []struct {
		name string
		req  model.EnqueueRequest
	}{
		{
			name: "missing tenant",
			req:  model.EnqueueRequest{Endpoint: "contacts", Method: model.MethodCreate},
		},
		{
			name: "missing endpoint",
			req:  model.EnqueueRequest{TenantID: "acme", Method: model.MethodCreate},
		},
		{
			name: "invalid method",
			req:  model.EnqueueRequest{TenantID: "acme", Endpoint: "contacts", Method: "PATCH"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postJSON(router, "/api/queue", tt.req)

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
			}
		})
	}
}

func TestListPendingEndpoint(t *testing.T) {
	router, manager := newQueueRouter(t)

	id, err := manager.Enqueue(context.Background(), model.EnqueueRequest{
		TenantID: "acme",
		Endpoint: "contacts",
		Method:   model.MethodCreate,
	})
	if err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}

	rec := getJSON(router, "/api/queue/acme/pending")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var resp struct {
		Data []model.QueueRecord `json:"data"`
	}

	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}

	if len(resp.Data) != 1 || resp.Data[0].ID != id {
		t.Fatalf("pending = %+v, want single record %v", resp.Data, id)
	}

	// A tenant with no records gets an empty list, not null.
	rec = getJSON(router, "/api/queue/globex/pending")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	if !bytes.Contains(rec.Body.Bytes(), []byte(`"data":[]`)) {
		t.Fatalf("body = %s, want empty data array", rec.Body)
	}
}

func TestRequeueEndpoint(t *testing.T) {
	router, manager := newQueueRouter(t)
	ctx := context.Background()

	id, err := manager.Enqueue(ctx, model.EnqueueRequest{
		TenantID: "acme",
		Endpoint: "contacts",
		Method:   model.MethodCreate,
	})
	if err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}

	// Requeueing a record that has not failed is a conflict.
	rec := postJSON(router, "/api/queue/records/"+id.String()+"/requeue", nil)

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusConflict)
	}

	if err := manager.MarkFailed(ctx, id, "rejected"); err != nil {
		t.Fatalf("MarkFailed() error = %v", err)
	}

	rec = postJSON(router, "/api/queue/records/"+id.String()+"/requeue", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, http.StatusOK, rec.Body)
	}

	pending, err := manager.ListPending(ctx, "acme")
	if err != nil {
		t.Fatalf("ListPending() error = %v", err)
	}

	if len(pending) != 1 {
		t.Fatalf("len(pending) = %d, want 1", len(pending))
	}
}

func TestRequeueEndpointRejectsBadID(t *testing.T) {
	router, _ := newQueueRouter(t)

	rec := postJSON(router, "/api/queue/records/not-a-uuid/requeue", nil)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestDiscardEndpoint(t *testing.T) {
	router, manager := newQueueRouter(t)
	ctx := context.Background()

	id, err := manager.Enqueue(ctx, model.EnqueueRequest{
		TenantID: "acme",
		Endpoint: "contacts",
		Method:   model.MethodCreate,
	})
	if err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}

	req := httptest.NewRequest(http.MethodDelete, "/api/queue/records/"+id.String(), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	pending, err := manager.ListPending(ctx, "acme")
	if err != nil {
		t.Fatalf("ListPending() error = %v", err)
	}

	if len(pending) != 0 {
		t.Fatalf("len(pending) = %d, want 0", len(pending))
	}
}
