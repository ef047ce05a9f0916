// Package webhook delivers signed screening events (saved assessments,
// closed registrations) to registered HTTP endpoints, such as a referral
// clinic's intake system.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Event types published by the sandbox.
const (
	EventAssessmentSaved    = "assessment.saved"
	EventRegistrationClosed = "registration.closed"
	EventTest               = "webhook.test"
)

var ErrEndpointNotFound = errors.New("webhook endpoint not found")

// Endpoint is a registered delivery target.
type Endpoint struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	Secret    string    `json:"secret,omitempty"`
	Events    []string  `json:"events"`
	Active    bool      `json:"active"`
	CreatedBy int64     `json:"created_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Delivery records one POST to an endpoint.
type Delivery struct {
	ID         string        `json:"id"`
	EndpointID string        `json:"endpoint_id"`
	EventID    string        `json:"event_id"`
	EventType  string        `json:"event_type"`
	StatusCode int           `json:"status_code"`
	Attempt    int           `json:"attempt"`
	Success    bool          `json:"success"`
	Error      string        `json:"error,omitempty"`
	Duration   time.Duration `json:"duration_ns"`
	CreatedAt  time.Time     `json:"created_at"`
}

// Event is the body POSTed to endpoints.
type Event struct {
	ID             string          `json:"id"`
	Type           string          `json:"type"`
	RegistrationID int64           `json:"registration_id"`
	Payload        json.RawMessage `json:"payload"`
	Timestamp      time.Time       `json:"timestamp"`
}

// NewEvent stamps an id and time on a payload.
func NewEvent(eventType string, registrationID int64, payload json.RawMessage) Event {
	return Event{
		ID:             uuid.NewString(),
		Type:           eventType,
		RegistrationID: registrationID,
		Payload:        payload,
		Timestamp:      time.Now().UTC(),
	}
}

// ---------------------------------------------------------------------------
// Store
// ---------------------------------------------------------------------------

type Store interface {
	CreateEndpoint(ctx context.Context, ep *Endpoint) error
	GetEndpoint(ctx context.Context, id string) (*Endpoint, error)
	ListEndpoints(ctx context.Context) ([]*Endpoint, error)
	DeleteEndpoint(ctx context.Context, id string) error
	RecordDelivery(ctx context.Context, d *Delivery) error
	ListDeliveries(ctx context.Context, endpointID string) ([]*Delivery, error)
}

// InMemoryStore keeps endpoints and the delivery log in maps.
type InMemoryStore struct {
	mu         sync.RWMutex
	endpoints  map[string]*Endpoint
	deliveries map[string][]*Delivery
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		endpoints:  make(map[string]*Endpoint),
		deliveries: make(map[string][]*Delivery),
	}
}

func (s *InMemoryStore) CreateEndpoint(_ context.Context, ep *Endpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.endpoints[ep.ID]; ok {
		return fmt.Errorf("endpoint %s already exists", ep.ID)
	}
	cp := *ep
	s.endpoints[ep.ID] = &cp
	return nil
}

func (s *InMemoryStore) GetEndpoint(_ context.Context, id string) (*Endpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ep, ok := s.endpoints[id]
	if !ok {
		return nil, ErrEndpointNotFound
	}
	cp := *ep
	return &cp, nil
}

// ListEndpoints returns endpoints oldest first.
func (s *InMemoryStore) ListEndpoints(_ context.Context) ([]*Endpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Endpoint, 0, len(s.endpoints))
	for _, ep := range s.endpoints {
		cp := *ep
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemoryStore) DeleteEndpoint(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.endpoints[id]; !ok {
		return ErrEndpointNotFound
	}
	delete(s.endpoints, id)
	delete(s.deliveries, id)
	return nil
}

func (s *InMemoryStore) RecordDelivery(_ context.Context, d *Delivery) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *d
	s.deliveries[d.EndpointID] = append(s.deliveries[d.EndpointID], &cp)
	return nil
}

// ListDeliveries returns the newest delivery first.
func (s *InMemoryStore) ListDeliveries(_ context.Context, endpointID string) ([]*Delivery, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	log := s.deliveries[endpointID]
	out := make([]*Delivery, 0, len(log))
	for i := len(log) - 1; i >= 0; i-- {
		cp := *log[i]
		out = append(out, &cp)
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// Signing
// ---------------------------------------------------------------------------

// SignPayload returns the hex HMAC-SHA256 of payload under secret.
func SignPayload(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func VerifySignature(payload []byte, secret, signature string) bool {
	expected := SignPayload(payload, secret)
	return hmac.Equal([]byte(expected), []byte(strings.TrimPrefix(signature, "sha256=")))
}

// ---------------------------------------------------------------------------
// Manager
// ---------------------------------------------------------------------------

type ManagerOption func(*Manager)

func WithHTTPClient(c *http.Client) ManagerOption {
	return func(m *Manager) { m.httpClient = c }
}

// WithRetryDelays sets the pause before each retry; its length is the
// number of retries.
func WithRetryDelays(d ...time.Duration) ManagerOption {
	return func(m *Manager) { m.retryDelays = d }
}

// Manager registers endpoints and fans events out to them.
type Manager struct {
	store       Store
	httpClient  *http.Client
	retryDelays []time.Duration
	logger      zerolog.Logger
	inflight    sync.WaitGroup
}

func NewManager(store Store, logger zerolog.Logger, opts ...ManagerOption) *Manager {
	m := &Manager{
		store:       store,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		retryDelays: []time.Duration{time.Second, 5 * time.Second},
		logger:      logger,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

func (m *Manager) Store() Store { return m.store }

func generateSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func validateURL(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("url is required")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return fmt.Errorf("url scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("url must include a host")
	}
	return nil
}

// Register validates and stores a new endpoint. An empty secret is
// generated; no events means every event.
func (m *Manager) Register(ctx context.Context, rawURL, secret string, events []string, createdBy int64) (*Endpoint, error) {
	if err := validateURL(rawURL); err != nil {
		return nil, err
	}
	if secret == "" {
		s, err := generateSecret()
		if err != nil {
			return nil, fmt.Errorf("generate secret: %w", err)
		}
		secret = s
	}
	if len(events) == 0 {
		events = []string{"*"}
	}
	ep := &Endpoint{
		ID:        uuid.NewString(),
		URL:       rawURL,
		Secret:    secret,
		Events:    events,
		Active:    true,
		CreatedBy: createdBy,
		CreatedAt: time.Now().UTC(),
	}
	if err := m.store.CreateEndpoint(ctx, ep); err != nil {
		return nil, err
	}
	return ep, nil
}

// eventMatches accepts an exact type, "*", or a prefix wildcard such as
// "registration.*".
func eventMatches(pattern, eventType string) bool {
	switch {
	case pattern == "*" || pattern == eventType:
		return true
	case strings.HasSuffix(pattern, ".*"):
		return strings.HasPrefix(eventType, strings.TrimSuffix(pattern, "*"))
	default:
		return false
	}
}

func (ep *Endpoint) subscribes(eventType string) bool {
	for _, p := range ep.Events {
		if eventMatches(p, eventType) {
			return true
		}
	}
	return false
}

// Publish delivers event to every matching endpoint in the background.
// Wait blocks until those deliveries finish.
func (m *Manager) Publish(event Event) {
	endpoints, err := m.store.ListEndpoints(context.Background())
	if err != nil {
		m.logger.Error().Err(err).Str("event", event.Type).Msg("list webhook endpoints")
		return
	}
	for _, ep := range endpoints {
		if !ep.Active || !ep.subscribes(event.Type) {
			continue
		}
		m.inflight.Add(1)
		go func(ep *Endpoint) {
			defer m.inflight.Done()
			m.deliverWithRetry(context.Background(), ep, event)
		}(ep)
	}
}

func (m *Manager) Wait() { m.inflight.Wait() }

func (m *Manager) deliverWithRetry(ctx context.Context, ep *Endpoint, event Event) *Delivery {
	var d *Delivery
	for attempt := 1; ; attempt++ {
		d = m.Deliver(ctx, ep, event, attempt)
		if d.Success || attempt > len(m.retryDelays) {
			break
		}
		select {
		case <-ctx.Done():
			return d
		case <-time.After(m.retryDelays[attempt-1]):
		}
	}
	if !d.Success {
		m.logger.Warn().
			Str("endpoint", ep.ID).
			Str("event", event.Type).
			Str("error", d.Error).
			Msg("webhook delivery gave up")
	}
	return d
}

// Deliver signs event and POSTs it to ep once, recording the result.
func (m *Manager) Deliver(ctx context.Context, ep *Endpoint, event Event, attempt int) *Delivery {
	d := &Delivery{
		ID:         uuid.NewString(),
		EndpointID: ep.ID,
		EventID:    event.ID,
		EventType:  event.Type,
		Attempt:    attempt,
		CreatedAt:  time.Now().UTC(),
	}
	defer func() {
		if err := m.store.RecordDelivery(ctx, d); err != nil {
			m.logger.Error().Err(err).Msg("record webhook delivery")
		}
	}()

	payload, err := json.Marshal(event)
	if err != nil {
		d.Error = err.Error()
		return d
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ep.URL, bytes.NewReader(payload))
	if err != nil {
		d.Error = err.Error()
		return d
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Signature", "sha256="+SignPayload(payload, ep.Secret))
	req.Header.Set("X-Webhook-ID", ep.ID)
	req.Header.Set("X-Webhook-Event", event.Type)

	start := time.Now()
	resp, err := m.httpClient.Do(req)
	d.Duration = time.Since(start)
	if err != nil {
		d.Error = err.Error()
		return d
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))

	d.StatusCode = resp.StatusCode
	d.Success = resp.StatusCode >= 200 && resp.StatusCode < 300
	if !d.Success {
		d.Error = fmt.Sprintf("non-2xx response: %d", resp.StatusCode)
	}
	return d
}

// Test sends a synthetic event to one endpoint, without retries.
func (m *Manager) Test(ctx context.Context, endpointID string) (*Delivery, error) {
	ep, err := m.store.GetEndpoint(ctx, endpointID)
	if err != nil {
		return nil, err
	}
	return m.Deliver(ctx, ep, NewEvent(EventTest, 0, json.RawMessage(`{"test":true}`)), 1), nil
}
