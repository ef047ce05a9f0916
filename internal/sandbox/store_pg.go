package sandbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/eyescreen/screening/internal/domain/assessment"
	"github.com/eyescreen/screening/internal/domain/registration"
	"github.com/eyescreen/screening/internal/platform/db"
	"github.com/eyescreen/screening/pkg/pagination"
)

type queryable interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// PGStore persists the sandbox in the schema selected by the pool's
// search_path.
type PGStore struct {
	pool *pgxpool.Pool
}

func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

func (s *PGStore) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return s.pool
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

const operatorColumns = `id, name, email, role, password_hash`

func scanOperator(row pgx.Row) (*Operator, error) {
	var op Operator
	if err := row.Scan(&op.ID, &op.Name, &op.Email, &op.Role, &op.PasswordHash); err != nil {
		return nil, notFound(err)
	}
	return &op, nil
}

func (s *PGStore) OperatorByEmail(ctx context.Context, email string) (*Operator, error) {
	return scanOperator(s.conn(ctx).QueryRow(ctx,
		`SELECT `+operatorColumns+` FROM operators WHERE lower(email) = lower($1)`, email))
}

func (s *PGStore) Operator(ctx context.Context, id int64) (*Operator, error) {
	return scanOperator(s.conn(ctx).QueryRow(ctx,
		`SELECT `+operatorColumns+` FROM operators WHERE id = $1`, id))
}

const eventColumns = `e.id, e.name, e.location, COALESCE(e.start_date::text, ''), COALESCE(e.end_date::text, ''), e.status`

func scanEvent(row pgx.Row) (registration.Event, error) {
	var ev registration.Event
	err := row.Scan(&ev.ID, &ev.Name, &ev.Location, &ev.StartDate, &ev.EndDate, &ev.Status)
	return ev, err
}

func (s *PGStore) ListEvents(ctx context.Context, p pagination.Params) ([]registration.Event, int, error) {
	var total int
	if err := s.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM events`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := s.conn(ctx).Query(ctx,
		`SELECT `+eventColumns+` FROM events e ORDER BY e.id LIMIT $1 OFFSET $2`, p.PerPage, p.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []registration.Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, ev)
	}
	return out, total, rows.Err()
}

func (s *PGStore) Event(ctx context.Context, id int64) (*registration.Event, error) {
	ev, err := scanEvent(s.conn(ctx).QueryRow(ctx, `SELECT `+eventColumns+` FROM events e WHERE e.id = $1`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return &ev, nil
}

const patientColumns = `p.id, p.name, p.identity_number, COALESCE(p.date_of_birth::text, ''), p.gender, p.phone`

func scanPatient(row pgx.Row) (registration.Patient, error) {
	var pt registration.Patient
	err := row.Scan(&pt.ID, &pt.Name, &pt.IdentityNumber, &pt.DateOfBirth, &pt.Gender, &pt.Phone)
	return pt, err
}

// registrationQuery joins the patient and event so one row carries the
// expanded registration.
const registrationQuery = `SELECT r.id, r.patient_id, r.event_id, r.reference_number, r.attendance_status, r.description, ` +
	patientColumns + `, ` + eventColumns + `
	FROM registrations r
	JOIN patients p ON p.id = r.patient_id
	JOIN events e ON e.id = r.event_id`

func scanRegistration(row pgx.Row) (registration.Registration, error) {
	var (
		r    registration.Registration
		desc []byte
		pt   registration.Patient
		ev   registration.Event
	)
	err := row.Scan(
		&r.ID, &r.PatientID, &r.EventID, &r.ReferenceNumber, &r.AttendanceStatus, &desc,
		&pt.ID, &pt.Name, &pt.IdentityNumber, &pt.DateOfBirth, &pt.Gender, &pt.Phone,
		&ev.ID, &ev.Name, &ev.Location, &ev.StartDate, &ev.EndDate, &ev.Status,
	)
	if err != nil {
		return r, err
	}
	if len(desc) > 0 {
		r.Description = json.RawMessage(desc)
	}
	r.Patient, r.Event = &pt, &ev
	return r, nil
}

func (s *PGStore) ListRegistrations(ctx context.Context, eventID int64, p pagination.Params) ([]registration.Registration, int, error) {
	var total int
	if err := s.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM registrations WHERE $1::bigint = 0 OR event_id = $1`, eventID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := s.conn(ctx).Query(ctx,
		registrationQuery+` WHERE $1::bigint = 0 OR r.event_id = $1 ORDER BY r.id LIMIT $2 OFFSET $3`,
		eventID, p.PerPage, p.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []registration.Registration
	for rows.Next() {
		r, err := scanRegistration(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, r)
	}
	return out, total, rows.Err()
}

func (s *PGStore) Registration(ctx context.Context, id int64) (*registration.Registration, error) {
	r, err := scanRegistration(s.conn(ctx).QueryRow(ctx, registrationQuery+` WHERE r.id = $1`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return &r, nil
}

func (s *PGStore) UpdateAttendance(ctx context.Context, id int64, status string, description json.RawMessage) error {
	var desc []byte
	if description != nil {
		desc = description
	}
	tag, err := s.conn(ctx).Exec(ctx, `
		UPDATE registrations
		SET attendance_status = $2, description = COALESCE($3::jsonb, description)
		WHERE id = $1`, id, status, desc)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PGStore) ListPatients(ctx context.Context, search string, p pagination.Params) ([]registration.Patient, int, error) {
	pattern := "%" + strings.ToLower(strings.TrimSpace(search)) + "%"
	const where = ` WHERE lower(p.name) LIKE $1 OR lower(p.identity_number) LIKE $1`

	var total int
	if err := s.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM patients p`+where, pattern).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := s.conn(ctx).Query(ctx,
		`SELECT `+patientColumns+` FROM patients p`+where+` ORDER BY p.id LIMIT $2 OFFSET $3`,
		pattern, p.PerPage, p.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []registration.Patient
	for rows.Next() {
		pt, err := scanPatient(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, pt)
	}
	return out, total, rows.Err()
}

func (s *PGStore) Patient(ctx context.Context, id int64) (*registration.Patient, error) {
	pt, err := scanPatient(s.conn(ctx).QueryRow(ctx, `SELECT `+patientColumns+` FROM patients p WHERE p.id = $1`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return &pt, nil
}

func (s *PGStore) Assessment(ctx context.Context, kind assessment.Kind, registrationID int64) (json.RawMessage, error) {
	var body []byte
	err := s.conn(ctx).QueryRow(ctx,
		`SELECT body FROM assessments WHERE kind = $1 AND registration_id = $2`,
		string(kind), registrationID).Scan(&body)
	if err != nil {
		return nil, notFound(err)
	}
	return json.RawMessage(body), nil
}

func (s *PGStore) PutAssessment(ctx context.Context, kind assessment.Kind, registrationID int64, body json.RawMessage) error {
	_, err := s.conn(ctx).Exec(ctx, `
		INSERT INTO assessments (kind, registration_id, body)
		VALUES ($1, $2, $3::jsonb)
		ON CONFLICT (kind, registration_id)
		DO UPDATE SET body = EXCLUDED.body, updated_at = NOW()`,
		string(kind), registrationID, []byte(body))
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23503" {
		return ErrNotFound
	}
	return err
}

// Seed truncates every table and inserts ds in one transaction.
func (s *PGStore) Seed(ctx context.Context, ds *Dataset) error {
	return db.WithTx(ctx, s.pool, func(ctx context.Context) error {
		q := s.conn(ctx)
		if _, err := q.Exec(ctx, `TRUNCATE attachments, assessments, registrations, patients, events, operators`); err != nil {
			return fmt.Errorf("truncate: %w", err)
		}
		for _, op := range ds.Operators {
			if _, err := q.Exec(ctx,
				`INSERT INTO operators (`+operatorColumns+`) VALUES ($1, $2, $3, $4, $5)`,
				op.ID, op.Name, op.Email, op.Role, op.PasswordHash); err != nil {
				return fmt.Errorf("insert operator %d: %w", op.ID, err)
			}
		}
		for _, ev := range ds.Events {
			if _, err := q.Exec(ctx, `
				INSERT INTO events (id, name, location, start_date, end_date, status)
				VALUES ($1, $2, $3, NULLIF($4, '')::date, NULLIF($5, '')::date, $6)`,
				ev.ID, ev.Name, ev.Location, ev.StartDate, ev.EndDate, ev.Status); err != nil {
				return fmt.Errorf("insert event %d: %w", ev.ID, err)
			}
		}
		for _, pt := range ds.Patients {
			if _, err := q.Exec(ctx, `
				INSERT INTO patients (id, name, identity_number, date_of_birth, gender, phone)
				VALUES ($1, $2, $3, NULLIF($4, '')::date, $5, $6)`,
				pt.ID, pt.Name, pt.IdentityNumber, pt.DateOfBirth, pt.Gender, pt.Phone); err != nil {
				return fmt.Errorf("insert patient %d: %w", pt.ID, err)
			}
		}
		for _, r := range ds.Registrations {
			var desc []byte
			if r.Description != nil {
				desc = r.Description
			}
			if _, err := q.Exec(ctx, `
				INSERT INTO registrations (id, patient_id, event_id, reference_number, attendance_status, description)
				VALUES ($1, $2, $3, $4, $5, $6::jsonb)`,
				r.ID, r.PatientID, r.EventID, r.ReferenceNumber, r.AttendanceStatus, desc); err != nil {
				return fmt.Errorf("insert registration %d: %w", r.ID, err)
			}
		}
		return nil
	})
}
