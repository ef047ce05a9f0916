// Package sandbox is a self-contained backend that serves the REST surface
// the field client consumes. It exists for demos, training sessions and
// tests; data lives in memory or, when DATABASE_URL is set, in Postgres.
package sandbox

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/eyescreen/screening/internal/domain/assessment"
	"github.com/eyescreen/screening/internal/domain/registration"
	"github.com/eyescreen/screening/pkg/pagination"
)

var ErrNotFound = errors.New("not found")

// Operator is a screening staff account.
type Operator struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	Role         string `json:"role"`
	PasswordHash string `json:"-"`
}

// Dataset is everything a seed run writes.
type Dataset struct {
	Operators     []Operator
	Events        []registration.Event
	Patients      []registration.Patient
	Registrations []registration.Registration
}

// Store is the persistence contract of the sandbox. Lookups of missing rows
// return ErrNotFound.
type Store interface {
	OperatorByEmail(ctx context.Context, email string) (*Operator, error)
	Operator(ctx context.Context, id int64) (*Operator, error)

	ListEvents(ctx context.Context, p pagination.Params) ([]registration.Event, int, error)
	Event(ctx context.Context, id int64) (*registration.Event, error)

	// ListRegistrations filters by event when eventID is non-zero.
	ListRegistrations(ctx context.Context, eventID int64, p pagination.Params) ([]registration.Registration, int, error)
	// Registration returns the row with its patient and event embedded.
	Registration(ctx context.Context, id int64) (*registration.Registration, error)
	UpdateAttendance(ctx context.Context, id int64, status string, description json.RawMessage) error

	// ListPatients matches search against name and identity number.
	ListPatients(ctx context.Context, search string, p pagination.Params) ([]registration.Patient, int, error)
	Patient(ctx context.Context, id int64) (*registration.Patient, error)

	Assessment(ctx context.Context, kind assessment.Kind, registrationID int64) (json.RawMessage, error)
	// PutAssessment replaces any earlier record of kind for the registration.
	PutAssessment(ctx context.Context, kind assessment.Kind, registrationID int64, body json.RawMessage) error

	// Seed replaces all rows with ds.
	Seed(ctx context.Context, ds *Dataset) error
}
