package assessment

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/eyescreen/screening/internal/platform/apiclient"
)

// Gateway reads and upserts one assessment type for a registration.
type Gateway[R any] struct {
	client *apiclient.Client
	kind   Kind
}

func NewGateway[R any](client *apiclient.Client, kind Kind) *Gateway[R] {
	return &Gateway[R]{client: client, kind: kind}
}

func (g *Gateway[R]) Kind() Kind { return g.kind }

// Fetch returns the stored record, or nil when none exists yet (null data
// or 404).
func (g *Gateway[R]) Fetch(ctx context.Context, registrationID int64) (*R, error) {
	var env apiclient.Envelope[*R]
	err := g.client.Get(ctx, g.kind.RecordPath(registrationID), nil, &env)
	if err != nil {
		var apiErr *apiclient.APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch %s: %w", g.kind, err)
	}
	return env.Data, nil
}

// Save upserts rec and returns the stored version (rec itself when the
// server echoes no data).
func (g *Gateway[R]) Save(ctx context.Context, rec R) (*R, error) {
	var env apiclient.Envelope[*R]
	if err := g.client.Post(ctx, g.kind.Path(), rec, &env); err != nil {
		return nil, fmt.Errorf("save %s: %w", g.kind, err)
	}
	if env.Data == nil {
		return &rec, nil
	}
	return env.Data, nil
}
