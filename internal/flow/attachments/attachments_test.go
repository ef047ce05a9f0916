package attachments

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/eyescreen/screening/internal/domain/externaleye"
	"github.com/eyescreen/screening/internal/platform/apiclient"
	"github.com/eyescreen/screening/internal/platform/notify"
	"github.com/eyescreen/screening/internal/platform/session"
)

type received struct {
	RegistrationID string
	Type           string
	Filename       string
	Content        string
}

func newUploadServer(t *testing.T) (*echo.Echo, *[]received, *sync.Mutex) {
	t.Helper()
	var (
		mu  sync.Mutex
		got []received
	)
	e := echo.New()
	e.POST("/api/assessment/external-eye-examination/:id/attachments", func(c echo.Context) error {
		fh, err := c.FormFile("file")
		if err != nil {
			return echo.NewHTTPError(http.StatusUnprocessableEntity, "file is required")
		}
		src, err := fh.Open()
		if err != nil {
			return err
		}
		defer src.Close()
		data, _ := io.ReadAll(src)

		mu.Lock()
		got = append(got, received{c.Param("id"), c.FormValue("type"), fh.Filename, string(data)})
		mu.Unlock()
		return c.JSON(http.StatusCreated, map[string]interface{}{"success": true})
	})
	return e, &got, &mu
}

func newUploader(t *testing.T, e *echo.Echo, rec *notify.Recorder) *Uploader {
	t.Helper()
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)
	c, err := apiclient.New(apiclient.Config{BaseURL: srv.URL + "/api", Timeout: 5 * time.Second}, session.New(nil), rec, zerolog.Nop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return NewUploader(c, rec, zerolog.Nop())
}

func writeImage(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(content), 0o600); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return p
}

func TestUploader_AfterSaveUploadsBothSides(t *testing.T) {
	e, got, mu := newUploadServer(t)
	u := newUploader(t, e, &notify.Recorder{})

	form := externaleye.NewForm()
	form.RightImage = writeImage(t, "right.jpg", "image-A")
	form.LeftImage = writeImage(t, "left.jpg", "image-B")

	u.AfterSave(42, form)(context.Background(), &externaleye.Record{RegistrationID: 42})
	results := u.Wait()

	if len(results) != 2 || len(Failed(results)) != 0 {
		t.Fatalf("expected two successful uploads, got %+v", results)
	}

	mu.Lock()
	defer mu.Unlock()
	sort.Slice(*got, func(i, j int) bool { return (*got)[i].Type < (*got)[j].Type })
	want := []received{
		{"42", "anterior_left", "left.jpg", "image-B"},
		{"42", "anterior_right", "right.jpg", "image-A"},
	}
	for i, w := range want {
		if (*got)[i] != w {
			t.Errorf("upload %d: expected %+v, got %+v", i, w, (*got)[i])
		}
	}
}

func TestUploader_AfterSaveIgnoresEchoedRegistration(t *testing.T) {
	e, got, mu := newUploadServer(t)
	u := newUploader(t, e, &notify.Recorder{})

	form := externaleye.NewForm()
	form.RightImage = writeImage(t, "right.jpg", "image-A")

	// The server echoed a record without registration_id.
	u.AfterSave(42, form)(context.Background(), &externaleye.Record{Result: "pass"})
	if failed := Failed(u.Wait()); len(failed) != 0 {
		t.Fatalf("unexpected failures: %+v", failed)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(*got) != 1 || (*got)[0].RegistrationID != "42" {
		t.Errorf("expected one upload for registration 42, got %+v", *got)
	}
}

func TestUploader_NoCapturesNoBatch(t *testing.T) {
	e, _, _ := newUploadServer(t)
	u := newUploader(t, e, &notify.Recorder{})
	u.AfterSave(1, externaleye.NewForm())(context.Background(), &externaleye.Record{RegistrationID: 1})
	if results := u.Wait(); len(results) != 0 {
		t.Errorf("expected no uploads, got %+v", results)
	}
}

func TestUploader_FailureIsReported(t *testing.T) {
	e, _, _ := newUploadServer(t)
	rec := &notify.Recorder{}
	u := newUploader(t, e, rec)

	b := u.Start(context.Background(), []Upload{{RegistrationID: 5, Type: "anterior_right", Path: "/does/not/exist.jpg"}})
	results := b.Wait()
	if len(Failed(results)) != 1 {
		t.Fatalf("expected one failure, got %+v", results)
	}
	toasts := rec.Toasts()
	if len(toasts) != 1 || toasts[0].Level != notify.LevelError {
		t.Errorf("expected one error toast, got %+v", toasts)
	}
}

func TestUploader_RejectsUnknownType(t *testing.T) {
	u := newUploader(t, echo.New(), &notify.Recorder{})
	err := u.Upload(context.Background(), Upload{RegistrationID: 1, Type: "fundus", Path: writeImage(t, "x.jpg", "x")})
	if err == nil {
		t.Error("expected error for unknown attachment type")
	}
}

func TestUploader_StartSurvivesCancelledContext(t *testing.T) {
	e, got, mu := newUploadServer(t)
	u := newUploader(t, e, &notify.Recorder{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	results := u.Start(ctx, []Upload{{RegistrationID: 3, Type: "anterior_left", Path: writeImage(t, "l.png", "png")}}).Wait()
	if len(Failed(results)) != 0 {
		t.Fatalf("expected upload to succeed after screen context ended, got %+v", results)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(*got) != 1 {
		t.Errorf("expected one upload received, got %d", len(*got))
	}
}
