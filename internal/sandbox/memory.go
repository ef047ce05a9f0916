package sandbox

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"

	"github.com/eyescreen/screening/internal/domain/assessment"
	"github.com/eyescreen/screening/internal/domain/registration"
	"github.com/eyescreen/screening/pkg/pagination"
)

type assessmentKey struct {
	kind           assessment.Kind
	registrationID int64
}

// MemoryStore keeps everything in maps guarded by one lock.
type MemoryStore struct {
	mu            sync.RWMutex
	operators     map[int64]Operator
	events        map[int64]registration.Event
	patients      map[int64]registration.Patient
	registrations map[int64]registration.Registration
	assessments   map[assessmentKey]json.RawMessage
}

func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{}
	s.reset()
	return s
}

func (s *MemoryStore) reset() {
	s.operators = make(map[int64]Operator)
	s.events = make(map[int64]registration.Event)
	s.patients = make(map[int64]registration.Patient)
	s.registrations = make(map[int64]registration.Registration)
	s.assessments = make(map[assessmentKey]json.RawMessage)
}

func (s *MemoryStore) OperatorByEmail(_ context.Context, email string) (*Operator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, op := range s.operators {
		if strings.EqualFold(op.Email, email) {
			out := op
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) Operator(_ context.Context, id int64) (*Operator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	op, ok := s.operators[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &op, nil
}

// sortedValues returns the map's values ordered by key.
func sortedValues[T any](m map[int64]T, keep func(T) bool) []T {
	ids := make([]int64, 0, len(m))
	for id, v := range m {
		if keep == nil || keep(v) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]T, 0, len(ids))
	for _, id := range ids {
		out = append(out, m[id])
	}
	return out
}

func (s *MemoryStore) ListEvents(_ context.Context, p pagination.Params) ([]registration.Event, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := sortedValues(s.events, nil)
	return pagination.Slice(all, p), len(all), nil
}

func (s *MemoryStore) Event(_ context.Context, id int64) (*registration.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ev, ok := s.events[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &ev, nil
}

func (s *MemoryStore) ListRegistrations(_ context.Context, eventID int64, p pagination.Params) ([]registration.Registration, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := sortedValues(s.registrations, func(r registration.Registration) bool {
		return eventID == 0 || r.EventID == eventID
	})
	page := pagination.Slice(all, p)
	for i := range page {
		page[i] = s.expand(page[i])
	}
	return page, len(all), nil
}

// expand attaches the patient and event. Callers hold the read lock.
func (s *MemoryStore) expand(r registration.Registration) registration.Registration {
	if pt, ok := s.patients[r.PatientID]; ok {
		r.Patient = &pt
	}
	if ev, ok := s.events[r.EventID]; ok {
		r.Event = &ev
	}
	return r
}

func (s *MemoryStore) Registration(_ context.Context, id int64) (*registration.Registration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.registrations[id]
	if !ok {
		return nil, ErrNotFound
	}
	r = s.expand(r)
	return &r, nil
}

func (s *MemoryStore) UpdateAttendance(_ context.Context, id int64, status string, description json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.registrations[id]
	if !ok {
		return ErrNotFound
	}
	r.AttendanceStatus = status
	if description != nil {
		r.Description = append(json.RawMessage(nil), description...)
	}
	s.registrations[id] = r
	return nil
}

func (s *MemoryStore) ListPatients(_ context.Context, search string, p pagination.Params) ([]registration.Patient, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	needle := strings.ToLower(strings.TrimSpace(search))
	all := sortedValues(s.patients, func(pt registration.Patient) bool {
		return needle == "" ||
			strings.Contains(strings.ToLower(pt.Name), needle) ||
			strings.Contains(strings.ToLower(pt.IdentityNumber), needle)
	})
	return pagination.Slice(all, p), len(all), nil
}

func (s *MemoryStore) Patient(_ context.Context, id int64) (*registration.Patient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pt, ok := s.patients[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &pt, nil
}

func (s *MemoryStore) Assessment(_ context.Context, kind assessment.Kind, registrationID int64) (json.RawMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	body, ok := s.assessments[assessmentKey{kind, registrationID}]
	if !ok {
		return nil, ErrNotFound
	}
	return append(json.RawMessage(nil), body...), nil
}

func (s *MemoryStore) PutAssessment(_ context.Context, kind assessment.Kind, registrationID int64, body json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.registrations[registrationID]; !ok {
		return ErrNotFound
	}
	s.assessments[assessmentKey{kind, registrationID}] = append(json.RawMessage(nil), body...)
	return nil
}

func (s *MemoryStore) Seed(_ context.Context, ds *Dataset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
	for _, op := range ds.Operators {
		s.operators[op.ID] = op
	}
	for _, ev := range ds.Events {
		s.events[ev.ID] = ev
	}
	for _, pt := range ds.Patients {
		s.patients[pt.ID] = pt
	}
	for _, r := range ds.Registrations {
		r.Patient, r.Event = nil, nil
		s.registrations[r.ID] = r
	}
	return nil
}
