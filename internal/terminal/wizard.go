package terminal

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/eyescreen/screening/internal/domain/assessment"
	"github.com/eyescreen/screening/internal/flow/screen"
	"github.com/eyescreen/screening/internal/flow/stepper"
)

// Screen is the part of screen.Controller the wizard drives.
type Screen interface {
	Mount(ctx context.Context) error
	Step() assessment.Step
	Stepper() *stepper.Stepper
	Set(key, value string) error
	Next(ctx context.Context) error
	Back()
	State() screen.State
	Alert() string
}

const help = "Enter keeps the current value, '-' clears it, '<' goes back a step, 'q' quits."

// errBack unwinds a step when the operator types '<'.
var errBack = errors.New("back")

// Run mounts s and walks the operator through every step until the
// assessment is saved, the operator quits, or a failed save is not retried.
func Run(ctx context.Context, p *Prompter, title string, s Screen) error {
	p.Printf("\n== %s ==\n%s\n", title, help)
	if err := s.Mount(ctx); err != nil {
		p.Printf("! Could not load the saved record (%v). Starting from an empty form.\n", err)
	}

	for {
		st := s.Stepper()
		step := s.Step()
		p.Printf("\n-- Step %d of %d: %s (%.0f%%) --\n", st.Current(), st.Total(), step.Title, st.Progress()*100)

		err := askFields(p, s, step)
		switch {
		case errors.Is(err, errBack):
			if st.IsFirst() {
				p.Printf("Already on the first step.\n")
			}
			s.Back()
			continue
		case err != nil:
			return err
		}

		if st.IsLast() {
			p.Printf("Saving...\n")
		}
		if err := s.Next(ctx); err != nil {
			if s.State() != screen.Failed {
				return err
			}
			p.Printf("! %s\n", s.Alert())
			retry, perr := p.Confirm("Review and try again?")
			if perr != nil {
				return perr
			}
			if !retry {
				return err
			}
			continue
		}
		if s.State() == screen.Done {
			p.Printf("%s saved.\n", title)
			return nil
		}
	}
}

func askFields(p *Prompter, s Screen, step assessment.Step) error {
	for _, f := range step.Fields {
		for {
			ans, err := askField(p, f)
			if err != nil {
				return err
			}
			if ans == nil {
				break
			}
			if err := s.Set(f.Key, *ans); err != nil {
				p.Printf("  %v\n", err)
				continue
			}
			break
		}
	}
	return nil
}

// askField returns the new value, or nil to keep the current one.
func askField(p *Prompter, f assessment.Field) (*string, error) {
	cur := f.Get()
	if f.Kind == assessment.Select {
		for i, o := range f.Options {
			marker := " "
			if o.Value == cur {
				marker = "*"
			}
			p.Printf("  %s%2d) %s\n", marker, i+1, o.Label)
		}
	}
	label := f.Label
	if cur != "" {
		label = fmt.Sprintf("%s [%s]", label, cur)
	}
	if f.Kind == assessment.Image {
		label += " (path to image file)"
	}

	for {
		ans, err := p.Ask(label)
		if err != nil {
			return nil, err
		}
		switch ans {
		case "":
			return nil, nil
		case "q":
			return nil, ErrAborted
		case "<":
			return nil, errBack
		case "-":
			empty := ""
			return &empty, nil
		}

		switch f.Kind {
		case assessment.Select:
			v, ok := pickOption(f.Options, ans)
			if !ok {
				p.Printf("  choose 1-%d or type a listed value\n", len(f.Options))
				continue
			}
			return &v, nil
		case assessment.Image:
			if info, err := os.Stat(ans); err != nil || info.IsDir() {
				p.Printf("  %s is not a readable file\n", ans)
				continue
			}
		}
		return &ans, nil
	}
}

// pickOption accepts a 1-based index or an option value (case-insensitive).
func pickOption(opts []assessment.Option, ans string) (string, bool) {
	if n, err := strconv.Atoi(ans); err == nil && n >= 1 && n <= len(opts) {
		return opts[n-1].Value, true
	}
	for _, o := range opts {
		if strings.EqualFold(o.Value, ans) {
			return o.Value, true
		}
	}
	return "", false
}
