// Package attachments uploads the external eye photographs once the
// examination has been saved. Uploads run in the background and are not
// tied to the save result; their outcomes are collected so the caller can
// report failures before the process exits.
package attachments

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"

	"github.com/eyescreen/screening/internal/domain/assessment"
	"github.com/eyescreen/screening/internal/domain/externaleye"
	"github.com/eyescreen/screening/internal/flow/dispatch"
	"github.com/eyescreen/screening/internal/platform/apiclient"
	"github.com/eyescreen/screening/internal/platform/notify"
)

// Upload is one image bound for a registration.
type Upload struct {
	RegistrationID int64
	Type           string
	Path           string
}

type Result struct {
	Upload Upload
	Err    error
}

// Batch is the set of uploads started by one save.
type Batch struct {
	wg      sync.WaitGroup
	mu      sync.Mutex
	results []Result
}

func (b *Batch) add(r Result) {
	b.mu.Lock()
	b.results = append(b.results, r)
	b.mu.Unlock()
}

// Wait blocks until every upload in the batch has finished.
func (b *Batch) Wait() []Result {
	b.wg.Wait()
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Result{}, b.results...)
}

type Uploader struct {
	client   *apiclient.Client
	notifier notify.Notifier
	logger   zerolog.Logger

	mu      sync.Mutex
	batches []*Batch
}

func NewUploader(client *apiclient.Client, notifier notify.Notifier, logger zerolog.Logger) *Uploader {
	return &Uploader{client: client, notifier: notifier, logger: logger}
}

// Upload sends one image synchronously.
func (u *Uploader) Upload(ctx context.Context, up Upload) error {
	if !externaleye.ValidAttachmentType(up.Type) {
		return fmt.Errorf("unknown attachment type %q", up.Type)
	}
	f, err := os.Open(up.Path)
	if err != nil {
		return fmt.Errorf("open image: %w", err)
	}
	defer f.Close()

	path := fmt.Sprintf("%s/attachments", assessment.KindExternalEye.RecordPath(up.RegistrationID))
	return u.client.PostMultipart(ctx, path, map[string]string{"type": up.Type}, apiclient.File{
		Field:       "file",
		Name:        filepath.Base(up.Path),
		ContentType: mime.TypeByExtension(filepath.Ext(up.Path)),
		Content:     f,
	}, nil)
}

// Start launches one goroutine per upload. The uploads outlive ctx's
// cancellation so leaving the screen does not abort them.
func (u *Uploader) Start(ctx context.Context, uploads []Upload) *Batch {
	b := &Batch{}
	ctx = context.WithoutCancel(ctx)
	for _, up := range uploads {
		b.wg.Add(1)
		go func(up Upload) {
			defer b.wg.Done()
			err := u.Upload(ctx, up)
			if err != nil {
				u.logger.Error().Err(err).
					Int64("registration_id", up.RegistrationID).
					Str("type", up.Type).
					Msg("attachment upload failed")
				u.notifier.Notify(notify.Toast{
					Level:   notify.LevelError,
					Title:   "Upload failed",
					Message: fmt.Sprintf("The %s image could not be uploaded.", assessment.Humanize(up.Type)),
				})
			} else {
				u.logger.Info().
					Int64("registration_id", up.RegistrationID).
					Str("type", up.Type).
					Msg("attachment uploaded")
			}
			b.add(Result{Upload: up, Err: err})
		}(up)
	}

	u.mu.Lock()
	u.batches = append(u.batches, b)
	u.mu.Unlock()
	return b
}

// Wait blocks until every batch started so far has finished and returns
// all results.
func (u *Uploader) Wait() []Result {
	u.mu.Lock()
	batches := append([]*Batch{}, u.batches...)
	u.mu.Unlock()

	var out []Result
	for _, b := range batches {
		out = append(out, b.Wait()...)
	}
	return out
}

// FromCaptures turns the form's captured images into uploads.
func FromCaptures(registrationID int64, captures []externaleye.Capture) []Upload {
	out := make([]Upload, 0, len(captures))
	for _, c := range captures {
		out = append(out, Upload{RegistrationID: registrationID, Type: c.Type, Path: c.Path})
	}
	return out
}

// AfterSave returns the dispatcher hook that uploads form's captures for
// registrationID, the registration being examined. The saved record is not
// consulted; servers may echo it partially.
func (u *Uploader) AfterSave(registrationID int64, form *externaleye.Form) dispatch.Hook[externaleye.Record] {
	return func(ctx context.Context, _ *externaleye.Record) {
		uploads := FromCaptures(registrationID, form.Captures())
		if len(uploads) == 0 {
			return
		}
		u.Start(ctx, uploads)
	}
}

// Failed filters results down to the failures.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if r.Err != nil {
			out = append(out, r)
		}
	}
	return out
}
