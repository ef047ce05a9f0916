package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
)

type rec struct {
	ID   int
	Note string
}

func TestDispatcher_SaveRunsHooks(t *testing.T) {
	var order []string
	d := New[rec](SaverFunc[rec](func(ctx context.Context, r rec) (*rec, error) {
		order = append(order, "save")
		r.Note = "stored"
		return &r, nil
	}), zerolog.Nop())
	d.AfterSave(func(ctx context.Context, saved *rec) {
		order = append(order, "hook:"+saved.Note)
	})

	saved, err := d.Save(context.Background(), rec{ID: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if saved.Note != "stored" {
		t.Errorf("expected stored record, got %+v", saved)
	}
	if len(order) != 2 || order[0] != "save" || order[1] != "hook:stored" {
		t.Errorf("unexpected order %v", order)
	}
	if d.Busy() {
		t.Error("expected dispatcher to be idle after save")
	}
}

func TestDispatcher_FailureSkipsHooks(t *testing.T) {
	boom := errors.New("boom")
	d := New[rec](SaverFunc[rec](func(ctx context.Context, r rec) (*rec, error) {
		return nil, boom
	}), zerolog.Nop())
	called := false
	d.AfterSave(func(ctx context.Context, saved *rec) { called = true })

	if _, err := d.Save(context.Background(), rec{}); !errors.Is(err, boom) {
		t.Errorf("expected boom, got %v", err)
	}
	if called {
		t.Error("hook must not run after a failed save")
	}

	// The dispatcher accepts a retry after a failure.
	if _, err := d.Save(context.Background(), rec{}); errors.Is(err, ErrSaveInProgress) {
		t.Error("expected dispatcher to be released after failure")
	}
}

func TestDispatcher_RejectsConcurrentSave(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	d := New[rec](SaverFunc[rec](func(ctx context.Context, r rec) (*rec, error) {
		close(entered)
		<-release
		return &r, nil
	}), zerolog.Nop())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if _, err := d.Save(context.Background(), rec{ID: 1}); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	}()

	<-entered
	if !d.Busy() {
		t.Error("expected dispatcher to be busy")
	}
	if _, err := d.Save(context.Background(), rec{ID: 2}); !errors.Is(err, ErrSaveInProgress) {
		t.Errorf("expected ErrSaveInProgress, got %v", err)
	}
	close(release)
	wg.Wait()
}

func TestDispatcher_NilResultFallsBackToPayload(t *testing.T) {
	d := New[rec](SaverFunc[rec](func(ctx context.Context, r rec) (*rec, error) {
		return nil, nil
	}), zerolog.Nop())
	saved, err := d.Save(context.Background(), rec{ID: 9})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if saved.ID != 9 {
		t.Errorf("expected payload back, got %+v", saved)
	}
}
