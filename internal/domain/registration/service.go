package registration

import (
	"context"
	"fmt"
	"strconv"

	"github.com/eyescreen/screening/internal/platform/apiclient"
	"github.com/eyescreen/screening/pkg/pagination"
)

// Service reads the registration context an operator screens against.
type Service struct {
	client *apiclient.Client
}

func NewService(client *apiclient.Client) *Service {
	return &Service{client: client}
}

func (s *Service) ListEvents(ctx context.Context, p pagination.Params) (*pagination.Page[Event], error) {
	var page pagination.Page[Event]
	if err := s.client.Get(ctx, "/events", p.Query(), &page); err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return &page, nil
}

func (s *Service) GetEvent(ctx context.Context, id int64) (*Event, error) {
	var env apiclient.Envelope[*Event]
	if err := s.client.Get(ctx, "/events/"+strconv.FormatInt(id, 10), nil, &env); err != nil {
		return nil, fmt.Errorf("get event %d: %w", id, err)
	}
	return env.Data, nil
}

// ListRegistrations lists registrations, narrowed to one event when eventID > 0.
func (s *Service) ListRegistrations(ctx context.Context, eventID int64, p pagination.Params) (*pagination.Page[Registration], error) {
	q := p.Query()
	if eventID > 0 {
		q.Set("event_id", strconv.FormatInt(eventID, 10))
	}
	var page pagination.Page[Registration]
	if err := s.client.Get(ctx, "/registrations", q, &page); err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	return &page, nil
}

func (s *Service) GetRegistration(ctx context.Context, id int64) (*Registration, error) {
	var env apiclient.Envelope[*Registration]
	if err := s.client.Get(ctx, "/registrations/"+strconv.FormatInt(id, 10), nil, &env); err != nil {
		return nil, fmt.Errorf("get registration %d: %w", id, err)
	}
	return env.Data, nil
}

func (s *Service) ListPatients(ctx context.Context, search string, p pagination.Params) (*pagination.Page[Patient], error) {
	q := p.Query()
	if search != "" {
		q.Set("search", search)
	}
	var page pagination.Page[Patient]
	if err := s.client.Get(ctx, "/patients", q, &page); err != nil {
		return nil, fmt.Errorf("list patients: %w", err)
	}
	return &page, nil
}

func (s *Service) GetPatient(ctx context.Context, id int64) (*Patient, error) {
	var env apiclient.Envelope[*Patient]
	if err := s.client.Get(ctx, "/patients/"+strconv.FormatInt(id, 10), nil, &env); err != nil {
		return nil, fmt.Errorf("get patient %d: %w", id, err)
	}
	return env.Data, nil
}
