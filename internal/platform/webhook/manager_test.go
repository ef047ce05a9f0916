package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

func newTestManager() *Manager {
	return NewManager(NewInMemoryStore(), zerolog.Nop(), WithRetryDelays(time.Millisecond, time.Millisecond))
}

func mustRegister(t *testing.T, m *Manager, url string, events ...string) *Endpoint {
	t.Helper()
	ep, err := m.Register(context.Background(), url, "test-secret-key", events, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return ep
}

// ===================== Registration =====================

func TestManager_Register(t *testing.T) {
	m := newTestManager()
	ep := mustRegister(t, m, "https://clinic.example.org/hooks", EventRegistrationClosed)

	if ep.ID == "" || !ep.Active || ep.CreatedAt.IsZero() {
		t.Errorf("unexpected endpoint: %+v", ep)
	}
	if ep.Secret != "test-secret-key" {
		t.Errorf("expected given secret, got %q", ep.Secret)
	}
}

func TestManager_Register_Defaults(t *testing.T) {
	m := newTestManager()
	ep, err := m.Register(context.Background(), "https://clinic.example.org/hooks", "", nil, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ep.Secret) < 32 {
		t.Errorf("expected generated secret, got %q", ep.Secret)
	}
	if len(ep.Events) != 1 || ep.Events[0] != "*" {
		t.Errorf("expected wildcard subscription, got %v", ep.Events)
	}
}

func TestManager_Register_InvalidURL(t *testing.T) {
	m := newTestManager()
	for _, u := range []string{"", "ftp://clinic.example.org", "https://", "::bad"} {
		if _, err := m.Register(context.Background(), u, "", nil, 1); err == nil {
			t.Errorf("expected error for %q", u)
		}
	}
}

func TestEventMatches(t *testing.T) {
	tests := []struct {
		pattern, event string
		want           bool
	}{
		{"*", EventAssessmentSaved, true},
		{EventAssessmentSaved, EventAssessmentSaved, true},
		{"registration.*", EventRegistrationClosed, true},
		{"registration.*", EventAssessmentSaved, false},
		{EventRegistrationClosed, EventAssessmentSaved, false},
	}
	for _, tt := range tests {
		t.Run(tt.pattern+"/"+tt.event, func(t *testing.T) {
			if got := eventMatches(tt.pattern, tt.event); got != tt.want {
				t.Errorf("eventMatches(%q, %q) = %v, want %v", tt.pattern, tt.event, got, tt.want)
			}
		})
	}
}

// ===================== Delivery =====================

func TestManager_PublishSignsAndFilters(t *testing.T) {
	var (
		mu       sync.Mutex
		received []Event
		sigOK    = true
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var ev Event
		_ = json.Unmarshal(body, &ev)
		mu.Lock()
		received = append(received, ev)
		if !VerifySignature(body, "test-secret-key", r.Header.Get("X-Webhook-Signature")) {
			sigOK = false
		}
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	m := newTestManager()
	mustRegister(t, m, srv.URL, "registration.*")

	m.Publish(NewEvent(EventAssessmentSaved, 42, json.RawMessage(`{}`)))
	m.Publish(NewEvent(EventRegistrationClosed, 42, json.RawMessage(`{"overall_result":"refer"}`)))
	m.Wait()

	mu.Lock()
	defer mu.Unlock()
	if len(received) != 1 {
		t.Fatalf("expected one delivery, got %d", len(received))
	}
	if received[0].Type != EventRegistrationClosed || received[0].RegistrationID != 42 {
		t.Errorf("unexpected event: %+v", received[0])
	}
	if !sigOK {
		t.Error("expected a valid signature")
	}
}

func TestManager_PublishRetriesFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	m := newTestManager()
	ep := mustRegister(t, m, srv.URL)
	m.Publish(NewEvent(EventAssessmentSaved, 1, json.RawMessage(`{}`)))
	m.Wait()

	if calls.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", calls.Load())
	}
	log, _ := m.Store().ListDeliveries(context.Background(), ep.ID)
	if len(log) != 3 || !log[0].Success || log[0].Attempt != 3 {
		t.Errorf("expected newest delivery to be the successful third attempt, got %+v", log)
	}
}

func TestManager_InactiveEndpointSkipped(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	store := NewInMemoryStore()
	m := NewManager(store, zerolog.Nop())
	_ = store.CreateEndpoint(context.Background(), &Endpoint{ID: "off", URL: srv.URL, Events: []string{"*"}, Active: false})
	m.Publish(NewEvent(EventAssessmentSaved, 1, nil))
	m.Wait()

	if calls.Load() != 0 {
		t.Errorf("expected no deliveries, got %d", calls.Load())
	}
}

// ===================== Handler =====================

func TestHandler_RegisterListDelete(t *testing.T) {
	m := newTestManager()
	e := echo.New()
	NewHandler(m).RegisterRoutes(e.Group("/api"), "/sandbox/webhooks")

	req := httptest.NewRequest(http.MethodPost, "/api/sandbox/webhooks", strings.NewReader(`{"url":"https://clinic.example.org/in","events":["registration.closed"]}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var created struct {
		Data Endpoint `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sandbox/webhooks", nil))
	if rec.Code != http.StatusOK || strings.Contains(rec.Body.String(), created.Data.Secret) {
		t.Errorf("expected list without secrets, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/sandbox/webhooks/"+created.Data.ID, nil))
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sandbox/webhooks/"+created.Data.ID+"/deliveries", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 after delete, got %d", rec.Code)
	}
}

func TestHandler_RegisterRejectsBadURL(t *testing.T) {
	e := echo.New()
	NewHandler(newTestManager()).RegisterRoutes(e.Group("/api"), "/sandbox/webhooks")

	req := httptest.NewRequest(http.MethodPost, "/api/sandbox/webhooks", strings.NewReader(`{"url":"mailto:x@y"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422, got %d", rec.Code)
	}
}
