package sandbox

import (
	"context"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/eyescreen/screening/internal/domain/registration"
	"github.com/eyescreen/screening/internal/platform/auth"
	"github.com/eyescreen/screening/pkg/pagination"
)

// ---------------------------------------------------------------------------
// DataGenerator
// ---------------------------------------------------------------------------

func TestDataGenerator_GeneratePatient(t *testing.T) {
	gen := NewDataGenerator(42)
	p := gen.GeneratePatient()

	if p.ID != 1 {
		t.Errorf("expected first patient id 1, got %d", p.ID)
	}
	if p.Name == "" || p.IdentityNumber == "" || p.Phone == "" {
		t.Errorf("expected populated patient, got %+v", p)
	}
	if p.Gender != "male" && p.Gender != "female" {
		t.Errorf("unexpected gender %q", p.Gender)
	}
	if len(p.DateOfBirth) != len("2006-01-02") {
		t.Errorf("expected ISO date of birth, got %q", p.DateOfBirth)
	}
}

func TestDataGenerator_GenerateEvent(t *testing.T) {
	gen := NewDataGenerator(42)
	first := gen.GenerateEvent(0)
	later := gen.GenerateEvent(5)

	if first.Status != "completed" {
		t.Errorf("expected first event completed, got %s", first.Status)
	}
	if later.Status != "scheduled" {
		t.Errorf("expected later event scheduled, got %s", later.Status)
	}
	if first.StartDate >= later.StartDate {
		t.Errorf("expected events in date order, got %s then %s", first.StartDate, later.StartDate)
	}
	if !strings.HasPrefix(first.Name, "Vision Screening ") {
		t.Errorf("unexpected event name %q", first.Name)
	}
}

func TestDataGenerator_GenerateRegistration(t *testing.T) {
	gen := NewDataGenerator(42)
	ev := gen.GenerateEvent(2)
	pt := gen.GeneratePatient()
	r := gen.GenerateRegistration(ev, pt)

	if r.EventID != ev.ID || r.PatientID != pt.ID {
		t.Errorf("expected registration to link event and patient, got %+v", r)
	}
	if r.AttendanceStatus != registration.StatusRegistered {
		t.Errorf("expected registered status for a scheduled event, got %s", r.AttendanceStatus)
	}
	if r.ReferenceNumber != "EVT001-00001" {
		t.Errorf("unexpected reference number %q", r.ReferenceNumber)
	}
}

func TestDataGenerator_Reproducible(t *testing.T) {
	a, b := NewDataGenerator(99), NewDataGenerator(99)
	for i := 0; i < 10; i++ {
		pa, pb := a.GeneratePatient(), b.GeneratePatient()
		if !reflect.DeepEqual(pa, pb) {
			t.Fatalf("patient %d differs: %+v vs %+v", i, pa, pb)
		}
	}
}

// ---------------------------------------------------------------------------
// Seeder
// ---------------------------------------------------------------------------

func TestSeeder_Generate_DefaultConfig(t *testing.T) {
	ds, result, err := NewSeeder(SeedConfig{BcryptCost: bcrypt.MinCost}).Generate()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Events != 3 || result.Patients != 60 || result.Registrations != 60 || result.Operators != 3 {
		t.Errorf("unexpected counts: %+v", result)
	}
	if len(ds.Registrations) != 60 {
		t.Errorf("expected 60 registrations, got %d", len(ds.Registrations))
	}
}

func TestSeeder_OperatorsShareDemoPassword(t *testing.T) {
	ds, _, err := NewSeeder(SeedConfig{OperatorPassword: "s3cret", BcryptCost: bcrypt.MinCost}).Generate()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	roles := map[string]bool{}
	for _, op := range ds.Operators {
		roles[op.Role] = true
		if err := bcrypt.CompareHashAndPassword([]byte(op.PasswordHash), []byte("s3cret")); err != nil {
			t.Errorf("operator %s: password does not match", op.Email)
		}
	}
	for _, r := range []string{auth.RoleAdmin, auth.RoleOperator, auth.RoleViewer} {
		if !roles[r] {
			t.Errorf("expected an operator with role %s", r)
		}
	}
}

func TestSeeder_Run(t *testing.T) {
	store := NewMemoryStore()
	result, err := NewSeeder(SeedConfig{Events: 2, PatientsPerEvent: 3, Seed: 1, BcryptCost: bcrypt.MinCost}).Run(context.Background(), store)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Registrations != 6 {
		t.Errorf("expected 6 registrations, got %d", result.Registrations)
	}
	reg, err := store.Registration(context.Background(), 6)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reg.EventID != 2 || reg.Patient == nil {
		t.Errorf("unexpected registration: %+v", reg)
	}
}

// ---------------------------------------------------------------------------
// SeedHandler
// ---------------------------------------------------------------------------

func setupSeedEcho(role string) (*echo.Echo, *MemoryStore) {
	store := NewMemoryStore()
	e := echo.New()
	e.HTTPErrorHandler = ErrorHandler(zerolog.Nop())
	g := e.Group("/api", func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.SetRequest(c.Request().WithContext(context.WithValue(c.Request().Context(), auth.RoleKey, role)))
			return next(c)
		}
	})
	NewSeedHandler(store, SeedConfig{BcryptCost: bcrypt.MinCost}).RegisterRoutes(g)
	return e, store
}

func TestSeedHandler_Seed(t *testing.T) {
	e, store := setupSeedEcho(auth.RoleAdmin)

	req := httptest.NewRequest(http.MethodPost, "/api/sandbox/seed", strings.NewReader(`{"events":1,"patients_per_event":2}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	_, total, err := store.ListEvents(context.Background(), pagination.Params{Page: 1, PerPage: 15})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 1 {
		t.Errorf("expected 1 event, got %d", total)
	}
}

func TestSeedHandler_RejectsLargeRequests(t *testing.T) {
	e, _ := setupSeedEcho(auth.RoleAdmin)

	req := httptest.NewRequest(http.MethodPost, "/api/sandbox/seed", strings.NewReader(`{"events":50,"patients_per_event":9000}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	for _, field := range []string{"events", "patients_per_event"} {
		if !strings.Contains(rec.Body.String(), field) {
			t.Errorf("expected error for %s in %s", field, rec.Body.String())
		}
	}
}

func TestSeedHandler_OperatorForbidden(t *testing.T) {
	e, _ := setupSeedEcho(auth.RoleOperator)

	req := httptest.NewRequest(http.MethodPost, "/api/sandbox/seed", strings.NewReader(`{}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", rec.Code)
	}
}
