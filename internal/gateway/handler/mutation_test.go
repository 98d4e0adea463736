package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"syncline/internal/model"
)

type fakeMutationService struct {
	gotTenant   string
	gotEndpoint string
	gotMethod   model.Method
	gotKey      string
	gotPayload  json.RawMessage

	resp *model.MutationResponse
	err  error
}

func (s *fakeMutationService) Apply(_ context.Context, tenantID, endpoint string, method model.Method, key string, payload json.RawMessage) (*model.MutationResponse, error) {
	s.gotTenant = tenantID
	s.gotEndpoint = endpoint
	s.gotMethod = method
	s.gotKey = key
	s.gotPayload = payload

	return s.resp, s.err
}

func newMutationRouter(t *testing.T, svc MutationService) *gin.Engine {
	t.Helper()

	gin.SetMode(gin.TestMode)

	hdl := NewMutationHandler(zap.NewNop(), svc)

	router := gin.New()

	group := router.Group("/:tenant/mutations")
	group.Use(func(c *gin.Context) {
		c.Set(model.TenantIDKey, c.Param("tenant"))
	})
	group.POST("/*endpoint", hdl.Apply)
	group.PUT("/*endpoint", hdl.Apply)
	group.DELETE("/*endpoint", hdl.Apply)

	return router
}

func applyRequest(router *gin.Engine, verb, path, key string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(verb, path, bytes.NewReader(body))
	if key != "" {
		req.Header.Set(IdempotencyKeyHeader, key)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	return rec
}

func TestApplyAcceptsMutation(t *testing.T) {
	svc := &fakeMutationService{
		resp: &model.MutationResponse{ID: "abc", Applied: true, Entity: []byte(`{"name":"Ada"}`)},
	}
	router := newMutationRouter(t, svc)

	rec := applyRequest(router, http.MethodPost, "/acme/mutations/contacts", "key-1", []byte(`{"name":"Ada"}`))

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, http.StatusCreated, rec.Body)
	}

	if svc.gotTenant != "acme" {
		t.Errorf("tenant = %q, want %q", svc.gotTenant, "acme")
	}

	if svc.gotEndpoint != "contacts" {
		t.Errorf("endpoint = %q, want %q", svc.gotEndpoint, "contacts")
	}

	if svc.gotMethod != model.MethodCreate {
		t.Errorf("method = %q, want %q", svc.gotMethod, model.MethodCreate)
	}

	if svc.gotKey != "key-1" {
		t.Errorf("idempotency key = %q, want %q", svc.gotKey, "key-1")
	}

	if string(svc.gotPayload) != `{"name":"Ada"}` {
		t.Errorf("payload = %s, want the request body", svc.gotPayload)
	}
}

func TestApplyVerbToMethodMapping(t *testing.T) {
	tests := []struct {
		verb string
		want model.Method
	}{
		{http.MethodPost, model.MethodCreate},
		{http.MethodPut, model.MethodUpdate},
		{http.MethodDelete, model.MethodDelete},
	}

	for _, tt := range tests {
		t.Run(tt.verb, func(t *testing.T) {
			svc := &fakeMutationService{resp: &model.MutationResponse{ID: "abc", Applied: true}}
			router := newMutationRouter(t, svc)

			rec := applyRequest(router, tt.verb, "/acme/mutations/contacts/42", "key-1", nil)

			if rec.Code != http.StatusCreated {
				t.Fatalf("status = %d, want %d", rec.Code, http.StatusCreated)
			}

			if svc.gotMethod != tt.want {
				t.Fatalf("method = %q, want %q", svc.gotMethod, tt.want)
			}

			if svc.gotEndpoint != "contacts/42" {
				t.Fatalf("endpoint = %q, want %q", svc.gotEndpoint, "contacts/42")
			}
		})
	}
}

func TestApplyReplayedMutationReturnsOK(t *testing.T) {
	svc := &fakeMutationService{
		resp: &model.MutationResponse{ID: "abc", Applied: false, Entity: []byte(`{"name":"Ada"}`)},
	}
	router := newMutationRouter(t, svc)

	rec := applyRequest(router, http.MethodPost, "/acme/mutations/contacts", "key-1", []byte(`{"name":"Ada"}`))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var resp model.MutationResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}

	if resp.Applied {
		t.Fatal("Applied = true, want false for a replayed mutation")
	}
}

func TestApplyRequiresIdempotencyKey(t *testing.T) {
	svc := &fakeMutationService{resp: &model.MutationResponse{ID: "abc", Applied: true}}
	router := newMutationRouter(t, svc)

	rec := applyRequest(router, http.MethodPost, "/acme/mutations/contacts", "", []byte(`{}`))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestApplyRejectsInvalidJSON(t *testing.T) {
	svc := &fakeMutationService{resp: &model.MutationResponse{ID: "abc", Applied: true}}
	router := newMutationRouter(t, svc)

	rec := applyRequest(router, http.MethodPost, "/acme/mutations/contacts", "key-1", []byte(`{broken`))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestApplyServiceFailure(t *testing.T) {
	svc := &fakeMutationService{err: errors.New("db down")}
	router := newMutationRouter(t, svc)

	rec := applyRequest(router, http.MethodPost, "/acme/mutations/contacts", "key-1", []byte(`{}`))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}
}
