package notify

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestWriter_Notify(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	w.Notify(Toast{Level: LevelError, Title: "Network", Message: "offline"})

	if got := buf.String(); got != "[error] Network: offline\n" {
		t.Errorf("unexpected output %q", got)
	}
}

func TestLog_NotifyUsesLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewLog(zerolog.New(&buf))
	l.Notify(Toast{Level: LevelWarning, Message: "slow down"})

	if !strings.Contains(buf.String(), `"level":"warn"`) {
		t.Errorf("expected warn level, got %s", buf.String())
	}
}

func TestMulti_FansOut(t *testing.T) {
	a, b := &Recorder{}, &Recorder{}
	Multi(a, b, Discard).Notify(Toast{Message: "hi"})

	if len(a.Toasts()) != 1 || len(b.Toasts()) != 1 {
		t.Fatalf("expected one toast each, got %d and %d", len(a.Toasts()), len(b.Toasts()))
	}
}

func TestToast_String(t *testing.T) {
	if got := (Toast{Message: "plain"}).String(); got != "plain" {
		t.Errorf("expected plain, got %q", got)
	}
}
