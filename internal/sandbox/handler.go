package sandbox

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/eyescreen/screening/internal/domain/assessment"
	"github.com/eyescreen/screening/internal/domain/casesubmission"
	"github.com/eyescreen/screening/internal/domain/externaleye"
	"github.com/eyescreen/screening/internal/domain/historytaking"
	"github.com/eyescreen/screening/internal/domain/preliminarytest"
	"github.com/eyescreen/screening/internal/domain/refraction"
	"github.com/eyescreen/screening/internal/domain/visualacuity"
	"github.com/eyescreen/screening/internal/platform/auth"
	"github.com/eyescreen/screening/internal/platform/webhook"
	"github.com/eyescreen/screening/pkg/pagination"
)

// records returns an empty record of each kind for decoding and validation.
var records = map[assessment.Kind]func() assessment.Validator{
	assessment.KindHistoryTaking:   func() assessment.Validator { return &historytaking.Record{} },
	assessment.KindPreliminaryTest: func() assessment.Validator { return &preliminarytest.Record{} },
	assessment.KindVisualAcuity:    func() assessment.Validator { return &visualacuity.Record{} },
	assessment.KindExternalEye:     func() assessment.Validator { return &externaleye.Record{} },
	assessment.KindRefraction:      func() assessment.Validator { return &refraction.Record{} },
	assessment.KindCaseSubmission:  func() assessment.Validator { return &casesubmission.Record{} },
}

// Publisher receives screening events once they are stored.
type Publisher interface {
	Publish(event webhook.Event)
}

type Handler struct {
	store       Store
	issuer      *auth.Issuer
	revocations *auth.TokenRevocationStore
	events      Publisher
	logger      zerolog.Logger
}

func NewHandler(store Store, issuer *auth.Issuer, revocations *auth.TokenRevocationStore, logger zerolog.Logger) *Handler {
	return &Handler{store: store, issuer: issuer, revocations: revocations, logger: logger}
}

// WithPublisher sends saved assessments and closed registrations to p.
func (h *Handler) WithPublisher(p Publisher) *Handler {
	h.events = p
	return h
}

func (h *Handler) publish(eventType string, regID int64, payload json.RawMessage) {
	if h.events != nil {
		h.events.Publish(webhook.NewEvent(eventType, regID, payload))
	}
}

// RegisterRoutes mounts the API. login is the throttling middleware for
// POST /auth/login.
func (h *Handler) RegisterRoutes(api *echo.Group, login echo.MiddlewareFunc) {
	api.POST("/auth/login", h.Login, login)
	api.POST("/auth/logout", h.Logout)
	api.GET("/auth/me", h.Me)

	api.GET("/events", h.ListEvents)
	api.GET("/events/:id", h.GetEvent)
	api.GET("/registrations", h.ListRegistrations)
	api.GET("/registrations/:id", h.GetRegistration)
	api.GET("/patients", h.ListPatients)
	api.GET("/patients/:id", h.GetPatient)

	write := auth.RequireRole(auth.RoleOperator)
	for _, kind := range assessment.Kinds {
		api.GET(kind.Path()+"/:registration_id", h.GetAssessment(kind))
		api.POST(kind.Path(), h.SaveAssessment(kind), write)
	}
}

// -- Auth --

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string    `json:"token"`
	User  *Operator `json:"user"`
}

// Login answers bad credentials with 422 rather than 401 so clients do not
// treat a typo as an expired session.
func (h *Handler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Bad request.")
	}
	req.Email = strings.TrimSpace(req.Email)

	errs := map[string][]string{}
	if req.Email == "" {
		errs["email"] = []string{"The email field is required."}
	}
	if req.Password == "" {
		errs["password"] = []string{"The password field is required."}
	}
	if len(errs) > 0 {
		return validationFailed(c, errs)
	}

	ctx := c.Request().Context()
	op, err := h.store.OperatorByEmail(ctx, req.Email)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	if op == nil || bcrypt.CompareHashAndPassword([]byte(op.PasswordHash), []byte(req.Password)) != nil {
		h.logger.Warn().Str("email", req.Email).Msg("failed login")
		return c.JSON(http.StatusUnprocessableEntity, failure{
			Message: "These credentials do not match our records.",
			Errors:  map[string][]string{"email": {"These credentials do not match our records."}},
		})
	}

	token, _, err := h.issuer.Issue(auth.Operator{ID: op.ID, Name: op.Name, Email: op.Email, Role: op.Role})
	if err != nil {
		return err
	}
	h.logger.Info().Int64("operator_id", op.ID).Msg("operator logged in")
	return respond(c, http.StatusOK, loginResponse{Token: token, User: op}, "Login successful.")
}

func (h *Handler) Logout(c echo.Context) error {
	if claims := auth.ClaimsFromContext(c); claims != nil && h.revocations != nil {
		expires := time.Now()
		if claims.ExpiresAt != nil {
			expires = claims.ExpiresAt.Time
		}
		h.revocations.Revoke(claims.ID, expires)
	}
	return respond(c, http.StatusOK, nil, "Logged out.")
}

func (h *Handler) Me(c echo.Context) error {
	op, err := h.store.Operator(c.Request().Context(), auth.OperatorIDFromContext(c.Request().Context()))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusUnauthorized, "Unauthenticated.")
		}
		return err
	}
	return respond(c, http.StatusOK, op, "")
}

// -- Read context --

func idParam(c echo.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, notFoundError()
	}
	return id, nil
}

func (h *Handler) ListEvents(c echo.Context) error {
	p := pagination.FromContext(c)
	items, total, err := h.store.ListEvents(c.Request().Context(), p)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewPage(items, total, p))
}

func (h *Handler) GetEvent(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	ev, err := h.store.Event(c.Request().Context(), id)
	if err != nil {
		return lookupError(err)
	}
	return respond(c, http.StatusOK, ev, "")
}

func (h *Handler) ListRegistrations(c echo.Context) error {
	p := pagination.FromContext(c)
	var eventID int64
	if v := c.QueryParam("event_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			return validationFailed(c, map[string][]string{"event_id": {"The event id must be a positive integer."}})
		}
		eventID = id
	}
	items, total, err := h.store.ListRegistrations(c.Request().Context(), eventID, p)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewPage(items, total, p))
}

func (h *Handler) GetRegistration(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	reg, err := h.store.Registration(c.Request().Context(), id)
	if err != nil {
		return lookupError(err)
	}
	return respond(c, http.StatusOK, reg, "")
}

func (h *Handler) ListPatients(c echo.Context) error {
	p := pagination.FromContext(c)
	items, total, err := h.store.ListPatients(c.Request().Context(), c.QueryParam("search"), p)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewPage(items, total, p))
}

func (h *Handler) GetPatient(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	pt, err := h.store.Patient(c.Request().Context(), id)
	if err != nil {
		return lookupError(err)
	}
	return respond(c, http.StatusOK, pt, "")
}

// -- Assessments --

// GetAssessment answers data:null for a registration without a record.
func (h *Handler) GetAssessment(kind assessment.Kind) echo.HandlerFunc {
	return func(c echo.Context) error {
		regID, err := idParam(c, "registration_id")
		if err != nil {
			return err
		}
		ctx := c.Request().Context()
		if _, err := h.store.Registration(ctx, regID); err != nil {
			return lookupError(err)
		}
		body, err := h.store.Assessment(ctx, kind, regID)
		if errors.Is(err, ErrNotFound) {
			return respond(c, http.StatusOK, nil, "")
		}
		if err != nil {
			return err
		}
		return respond(c, http.StatusOK, body, "")
	}
}

// SaveAssessment upserts the record of kind named by the body's
// registration_id. Case submission also closes the registration.
func (h *Handler) SaveAssessment(kind assessment.Kind) echo.HandlerFunc {
	newRecord := records[kind]
	return func(c echo.Context) error {
		raw, err := io.ReadAll(c.Request().Body)
		if err != nil {
			return err
		}
		var head struct {
			RegistrationID json.Number `json:"registration_id"`
		}
		if err := json.Unmarshal(raw, &head); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "Bad request.")
		}
		regID, err := head.RegistrationID.Int64()
		if err != nil || regID <= 0 {
			return validationFailed(c, map[string][]string{"registration_id": {"The registration id field is required."}})
		}

		rec := newRecord()
		if err := json.Unmarshal(raw, rec); err != nil {
			return validationFailed(c, map[string][]string{"body": {err.Error()}})
		}
		if errs := rec.Validate(); !errs.Empty() {
			return validationFailed(c, errs)
		}

		ctx := c.Request().Context()
		if _, err := h.store.Registration(ctx, regID); err != nil {
			if errors.Is(err, ErrNotFound) {
				return validationFailed(c, map[string][]string{"registration_id": {"The selected registration id is invalid."}})
			}
			return err
		}

		canonical, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		if err := h.store.PutAssessment(ctx, kind, regID, canonical); err != nil {
			return lookupError(err)
		}

		if cs, ok := rec.(*casesubmission.Record); ok {
			if err := h.closeRegistration(c, regID, cs); err != nil {
				return err
			}
		}

		h.logger.Info().
			Str("assessment", string(kind)).
			Int64("registration_id", regID).
			Int64("operator_id", auth.OperatorIDFromContext(ctx)).
			Msg("assessment saved")
		h.publish(webhook.EventAssessmentSaved, regID, assessmentEvent(kind, canonical))
		return respond(c, http.StatusOK, json.RawMessage(canonical), kind.Title()+" saved successfully.")
	}
}

type closure struct {
	OverallResult string    `json:"overall_result"`
	Destination   string    `json:"referral_destination,omitempty"`
	SubmittedBy   int64     `json:"submitted_by"`
	SubmittedAt   time.Time `json:"submitted_at"`
}

func (h *Handler) closeRegistration(c echo.Context, regID int64, cs *casesubmission.Record) error {
	desc, err := json.Marshal(closure{
		OverallResult: cs.OverallResult,
		Destination:   cs.Referral.Destination,
		SubmittedBy:   auth.OperatorIDFromContext(c.Request().Context()),
		SubmittedAt:   time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	if err := h.store.UpdateAttendance(c.Request().Context(), regID, cs.AttendanceStatus(), desc); err != nil {
		return lookupError(err)
	}
	h.publish(webhook.EventRegistrationClosed, regID, desc)
	return nil
}

func assessmentEvent(kind assessment.Kind, record json.RawMessage) json.RawMessage {
	b, err := json.Marshal(struct {
		Kind   assessment.Kind `json:"kind"`
		Record json.RawMessage `json:"record"`
	}{kind, record})
	if err != nil {
		return record
	}
	return b
}
