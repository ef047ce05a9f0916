package sandbox

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/eyescreen/screening/internal/domain/account"
	"github.com/eyescreen/screening/internal/domain/assessment"
	"github.com/eyescreen/screening/internal/domain/casesubmission"
	"github.com/eyescreen/screening/internal/domain/registration"
	"github.com/eyescreen/screening/internal/domain/visualacuity"
	"github.com/eyescreen/screening/internal/flow/attachments"
	"github.com/eyescreen/screening/internal/platform/apiclient"
	"github.com/eyescreen/screening/internal/platform/auth"
	"github.com/eyescreen/screening/internal/platform/blobstore"
	"github.com/eyescreen/screening/internal/platform/middleware"
	"github.com/eyescreen/screening/internal/platform/notify"
	"github.com/eyescreen/screening/internal/platform/session"
	"github.com/eyescreen/screening/internal/platform/webhook"
	"github.com/eyescreen/screening/pkg/pagination"
)

type testEnv struct {
	url   string
	store *MemoryStore
	blobs *blobstore.InMemoryBlobStore
	hooks *webhook.Manager
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := NewMemoryStore()
	if _, err := NewSeeder(SeedConfig{Seed: 7, BcryptCost: bcrypt.MinCost}).Run(context.Background(), store); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	issuer, err := auth.NewIssuer("screening-sandbox", []byte("test-signing-key-0123456789"), time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	blobs := blobstore.NewInMemoryBlobStore()
	hooks := webhook.NewManager(webhook.NewInMemoryStore(), zerolog.Nop(), webhook.WithRetryDelays())
	srv := NewServer(Options{
		Store:      store,
		Blobs:      blobs,
		Issuer:     issuer,
		Logger:     zerolog.Nop(),
		Seed:       SeedConfig{BcryptCost: bcrypt.MinCost},
		LoginLimit: &middleware.RateLimitConfig{RequestsPerSecond: 1000, BurstSize: 1000},
		Webhooks:   hooks,
	})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		_ = srv.Shutdown(context.Background())
	})
	return &testEnv{url: ts.URL, store: store, blobs: blobs, hooks: hooks}
}

func (e *testEnv) client(t *testing.T, rec *notify.Recorder) *apiclient.Client {
	t.Helper()
	c, err := apiclient.New(apiclient.Config{BaseURL: e.url + "/api", Timeout: 5 * time.Second}, session.New(nil), rec, zerolog.Nop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return c
}

func (e *testEnv) login(t *testing.T, email string) *apiclient.Client {
	t.Helper()
	c := e.client(t, &notify.Recorder{})
	if _, err := account.NewService(c).Login(context.Background(), account.Credentials{Email: email, Password: "password"}); err != nil {
		t.Fatalf("login %s: unexpected error: %v", email, err)
	}
	return c
}

func statusOf(err error) int {
	var apiErr *apiclient.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

func TestServer_Health(t *testing.T) {
	env := newTestEnv(t)
	resp, err := http.Get(env.url + "/api/health")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if resp.Header.Get(middleware.RequestIDHeader) == "" {
		t.Error("expected request id header")
	}
	var body map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if body["store"] != "memory" {
		t.Errorf("expected memory store, got %v", body["store"])
	}
}

func TestServer_LoginBadCredentials(t *testing.T) {
	env := newTestEnv(t)
	c := env.client(t, &notify.Recorder{})

	_, err := account.NewService(c).Login(context.Background(), account.Credentials{Email: "operator@screening.test", Password: "wrong"})
	if statusOf(err) != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %v", err)
	}
	var apiErr *apiclient.APIError
	errors.As(err, &apiErr)
	if len(apiErr.Errors["email"]) == 0 {
		t.Errorf("expected email error, got %+v", apiErr.Errors)
	}
	if c.Session().Authenticated() {
		t.Error("expected session to stay signed out")
	}
}

func TestServer_LoginAndMe(t *testing.T) {
	env := newTestEnv(t)
	c := env.login(t, "operator@screening.test")

	me, err := account.NewService(c).Me(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if me.Email != "operator@screening.test" || me.Role != auth.RoleOperator {
		t.Errorf("unexpected operator: %+v", me)
	}
}

func TestServer_RejectsMissingToken(t *testing.T) {
	env := newTestEnv(t)
	resp, err := http.Get(env.url + "/api/events")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", resp.StatusCode)
	}
}

func TestServer_LogoutRevokesToken(t *testing.T) {
	env := newTestEnv(t)
	c := env.login(t, "operator@screening.test")
	token := c.Session().Token()

	if err := account.NewService(c).Logout(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Session().Authenticated() {
		t.Error("expected session to be cleared")
	}

	req, _ := http.NewRequest(http.MethodGet, env.url+"/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected revoked token to get 401, got %d", resp.StatusCode)
	}
}

func TestServer_ReadContext(t *testing.T) {
	env := newTestEnv(t)
	svc := registration.NewService(env.login(t, "viewer@screening.test"))
	ctx := context.Background()

	events, err := svc.ListEvents(ctx, pagination.Params{Page: 1, PerPage: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if events.Total != 3 || len(events.Data) != 3 {
		t.Fatalf("expected 3 events, got %+v", events)
	}

	regs, err := svc.ListRegistrations(ctx, events.Data[1].ID, pagination.Params{Page: 2, PerPage: 5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if regs.Total != 20 || regs.CurrentPage != 2 || len(regs.Data) != 5 {
		t.Fatalf("unexpected page: total=%d page=%d len=%d", regs.Total, regs.CurrentPage, len(regs.Data))
	}
	for _, r := range regs.Data {
		if r.EventID != events.Data[1].ID || r.Patient == nil {
			t.Errorf("expected expanded registration of event %d, got %+v", events.Data[1].ID, r)
		}
	}

	if _, err := svc.GetRegistration(ctx, 9999); statusOf(err) != http.StatusNotFound {
		t.Errorf("expected 404 for unknown registration, got %v", err)
	}
}

func TestServer_AssessmentRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	c := env.login(t, "operator@screening.test")
	gw := assessment.NewGateway[visualacuity.Record](c, assessment.KindVisualAcuity)
	ctx := context.Background()

	got, err := gw.Fetch(ctx, 42)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Fatalf("expected no record yet, got %+v", got)
	}

	rec := visualacuity.Record{RegistrationID: 42}
	rec.DistanceUnaided = visualacuity.PerEye{RightEye: "6/9", LeftEye: "6/12"}
	if _, err := gw.Save(ctx, rec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err = gw.Fetch(ctx, 42)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || got.DistanceUnaided.RightEye != "6/9" || got.DistanceUnaided.LeftEye != "6/12" {
		t.Errorf("expected stored record, got %+v", got)
	}
}

func TestServer_SaveValidation(t *testing.T) {
	env := newTestEnv(t)
	c := env.login(t, "operator@screening.test")
	gw := assessment.NewGateway[casesubmission.Record](c, assessment.KindCaseSubmission)

	_, err := gw.Save(context.Background(), casesubmission.Record{RegistrationID: 42, OverallResult: "maybe"})
	var apiErr *apiclient.APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %v", err)
	}
	if len(apiErr.Errors["overall_result"]) == 0 {
		t.Errorf("expected overall_result error, got %+v", apiErr.Errors)
	}

	_, err = gw.Save(context.Background(), casesubmission.Record{RegistrationID: 9999, OverallResult: "pass"})
	if statusOf(err) != http.StatusUnprocessableEntity {
		t.Errorf("expected 422 for unknown registration, got %v", err)
	}
}

func TestServer_ViewerCannotWrite(t *testing.T) {
	env := newTestEnv(t)
	c := env.login(t, "viewer@screening.test")
	gw := assessment.NewGateway[casesubmission.Record](c, assessment.KindCaseSubmission)

	_, err := gw.Save(context.Background(), casesubmission.Record{RegistrationID: 42, OverallResult: "pass"})
	if statusOf(err) != http.StatusForbidden {
		t.Errorf("expected 403, got %v", err)
	}
}

func TestServer_CaseSubmissionClosesRegistration(t *testing.T) {
	env := newTestEnv(t)
	c := env.login(t, "operator@screening.test")
	ctx := context.Background()

	rec := casesubmission.Record{
		RegistrationID: 42,
		OverallResult:  assessment.ResultRefer,
		Referral:       casesubmission.Referral{Destination: "specialist", Reason: "suspected cataract"},
	}
	if _, err := assessment.NewGateway[casesubmission.Record](c, assessment.KindCaseSubmission).Save(ctx, rec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	reg, err := registration.NewService(c).GetRegistration(ctx, 42)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reg.AttendanceStatus != registration.StatusReferredSpecialist {
		t.Errorf("expected %s, got %s", registration.StatusReferredSpecialist, reg.AttendanceStatus)
	}
	var desc closure
	if err := json.Unmarshal(reg.Description, &desc); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if desc.OverallResult != assessment.ResultRefer || desc.SubmittedBy != 2 {
		t.Errorf("unexpected closure: %+v", desc)
	}
}

func TestServer_AttachmentUploadReplaces(t *testing.T) {
	env := newTestEnv(t)
	c := env.login(t, "operator@screening.test")
	u := attachments.NewUploader(c, &notify.Recorder{}, zerolog.Nop())
	ctx := context.Background()

	dir := t.TempDir()
	first := filepath.Join(dir, "first.jpg")
	second := filepath.Join(dir, "second.png")
	if err := os.WriteFile(first, []byte("jpeg-bytes"), 0o600); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := os.WriteFile(second, []byte("png-bytes"), 0o600); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, p := range []string{first, second} {
		if err := u.Upload(ctx, attachments.Upload{RegistrationID: 42, Type: "anterior_right", Path: p}); err != nil {
			t.Fatalf("upload %s: unexpected error: %v", p, err)
		}
	}

	stored, err := env.blobs.ListByRegistration(ctx, 42)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(stored) != 1 || stored[0].FileName != "second.png" || stored[0].CreatedBy != 2 {
		t.Errorf("expected one replaced attachment, got %+v", stored)
	}

	err = u.Upload(ctx, attachments.Upload{RegistrationID: 9999, Type: "anterior_left", Path: first})
	if statusOf(err) != http.StatusNotFound {
		t.Errorf("expected 404 for unknown registration, got %v", err)
	}
}

func TestServer_SeedRequiresAdmin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	err := env.login(t, "operator@screening.test").Post(ctx, "/sandbox/seed", map[string]int{"events": 1}, nil)
	if statusOf(err) != http.StatusForbidden {
		t.Fatalf("expected 403, got %v", err)
	}

	var seeded apiclient.Envelope[SeedResult]
	err = env.login(t, "admin@screening.test").Post(ctx, "/sandbox/seed", map[string]int{"events": 1, "patients_per_event": 4}, &seeded)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if seeded.Data.Registrations != 4 {
		t.Errorf("expected 4 registrations, got %+v", seeded.Data)
	}
	if _, err := env.store.Registration(ctx, 5); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected old data to be gone, got %v", err)
	}
}

func TestServer_CaseSubmissionPublishesWebhooks(t *testing.T) {
	var (
		mu   sync.Mutex
		seen []webhook.Event
	)
	receiver := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var ev webhook.Event
		_ = json.NewDecoder(r.Body).Decode(&ev)
		mu.Lock()
		seen = append(seen, ev)
		mu.Unlock()
	}))
	defer receiver.Close()

	env := newTestEnv(t)
	if _, err := env.hooks.Register(context.Background(), receiver.URL, "clinic-secret", []string{"registration.*"}, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	c := env.login(t, "operator@screening.test")
	rec := casesubmission.Record{RegistrationID: 8, OverallResult: assessment.ResultPass}
	if _, err := assessment.NewGateway[casesubmission.Record](c, assessment.KindCaseSubmission).Save(context.Background(), rec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	env.hooks.Wait()

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 1 {
		t.Fatalf("expected one event, got %d", len(seen))
	}
	if seen[0].Type != webhook.EventRegistrationClosed || seen[0].RegistrationID != 8 {
		t.Errorf("unexpected event: %+v", seen[0])
	}
	var desc closure
	if err := json.Unmarshal(seen[0].Payload, &desc); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if desc.OverallResult != assessment.ResultPass {
		t.Errorf("expected pass, got %q", desc.OverallResult)
	}
}

func TestServer_WebhookRoutesAdminOnly(t *testing.T) {
	env := newTestEnv(t)
	c := env.login(t, "operator@screening.test")

	err := c.Get(context.Background(), "/sandbox/webhooks", nil, nil)
	if statusOf(err) != http.StatusForbidden {
		t.Errorf("expected 403 for operator, got %v", err)
	}
}
