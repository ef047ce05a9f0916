package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/eyescreen/screening/internal/domain/assessment"
	"github.com/eyescreen/screening/internal/domain/casesubmission"
	"github.com/eyescreen/screening/internal/domain/externaleye"
	"github.com/eyescreen/screening/internal/domain/historytaking"
	"github.com/eyescreen/screening/internal/domain/preliminarytest"
	"github.com/eyescreen/screening/internal/domain/refraction"
	"github.com/eyescreen/screening/internal/domain/registration"
	"github.com/eyescreen/screening/internal/domain/visualacuity"
	"github.com/eyescreen/screening/internal/flow/dispatch"
	"github.com/eyescreen/screening/internal/flow/hydration"
	"github.com/eyescreen/screening/internal/flow/screen"
	"github.com/eyescreen/screening/internal/terminal"
)

// newScreen wires a form to its gateway through a dispatcher.
func newScreen[R any](a *app, registrationID int64, form assessment.Form[R], policy hydration.Policy, hooks ...dispatch.Hook[R]) *screen.Controller[R] {
	gw := assessment.NewGateway[R](a.client, form.Kind())
	d := dispatch.New[R](gw, a.logger)
	for _, h := range hooks {
		d.AfterSave(h)
	}
	return screen.New[R](registrationID, form, gw, d, a.logger, screen.WithPolicy[R](policy))
}

// screenFor builds the controller of kind for one registration.
func screenFor(a *app, kind assessment.Kind, registrationID int64, policy hydration.Policy) (terminal.Screen, error) {
	switch kind {
	case assessment.KindHistoryTaking:
		return newScreen[historytaking.Record](a, registrationID, historytaking.NewForm(), policy), nil
	case assessment.KindPreliminaryTest:
		return newScreen[preliminarytest.Record](a, registrationID, preliminarytest.NewForm(), policy), nil
	case assessment.KindVisualAcuity:
		return newScreen[visualacuity.Record](a, registrationID, visualacuity.NewForm(), policy), nil
	case assessment.KindExternalEye:
		form := externaleye.NewForm()
		return newScreen[externaleye.Record](a, registrationID, form, policy, a.uploader.AfterSave(registrationID, form)), nil
	case assessment.KindRefraction:
		return newScreen[refraction.Record](a, registrationID, refraction.NewForm(), policy), nil
	case assessment.KindCaseSubmission:
		return newScreen[casesubmission.Record](a, registrationID, casesubmission.NewForm(), policy), nil
	default:
		return nil, fmt.Errorf("unknown assessment type %q", kind)
	}
}

func policyFlag(cmd *cobra.Command) hydration.Policy {
	if keep, _ := cmd.Flags().GetBool("keep-local-edits"); keep {
		return hydration.LocalEditsWin
	}
	return hydration.ServerWins
}

func runAssessment(ctx context.Context, a *app, kind assessment.Kind, registrationID int64, policy hydration.Policy) error {
	s, err := screenFor(a, kind, registrationID, policy)
	if err != nil {
		return err
	}
	return terminal.Run(ctx, a.prompter, kind.Title(), s)
}

func kindNames() string {
	names := make([]string, 0, len(assessment.Kinds))
	for _, k := range assessment.Kinds {
		names = append(names, string(k))
	}
	return strings.Join(names, ", ")
}

func assessCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "assess <type>",
		Short: "Record one assessment for a registration",
		Long:  "Walks through the steps of one assessment and saves it.\nTypes: " + kindNames() + " (or external-eye).",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := assessment.ParseKind(args[0])
			if err != nil {
				return err
			}
			regID, _ := cmd.Flags().GetInt64("registration")
			if regID <= 0 {
				return fmt.Errorf("--registration is required")
			}

			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			if err := a.requireAuth(); err != nil {
				return err
			}

			runErr := runAssessment(cmd.Context(), a, kind, regID, policyFlag(cmd))
			uploadErr := a.finishUploads()
			if errors.Is(runErr, terminal.ErrAborted) {
				a.prompter.Printf("Left %s without saving.\n", kind.Title())
				return uploadErr
			}
			if runErr != nil {
				return runErr
			}
			return uploadErr
		},
	}
	cmd.Flags().Int64("registration", 0, "Registration id")
	cmd.Flags().Bool("keep-local-edits", false, "Do not overwrite answers typed before the saved record loads")
	return cmd
}

// checkpointCmd runs the whole pipeline: profile verification, then every
// assessment in order.
func checkpointCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "checkpoint",
		Short: "Screen one registration through every checkpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			regID, _ := cmd.Flags().GetInt64("registration")
			if regID <= 0 {
				return fmt.Errorf("--registration is required")
			}
			from, _ := cmd.Flags().GetString("from")

			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			if err := a.requireAuth(); err != nil {
				return err
			}
			ctx := cmd.Context()

			stages, err := checkpointsFrom(assessment.Checkpoint(from))
			if err != nil {
				return err
			}

			runErr := runCheckpoints(ctx, a, regID, stages, policyFlag(cmd))
			uploadErr := a.finishUploads()
			if runErr != nil {
				return runErr
			}
			return uploadErr
		},
	}
	cmd.Flags().Int64("registration", 0, "Registration id")
	cmd.Flags().String("from", string(assessment.CheckpointProfileVerification), "Checkpoint to start from")
	cmd.Flags().Bool("keep-local-edits", false, "Do not overwrite answers typed before the saved record loads")
	return cmd
}

func checkpointsFrom(start assessment.Checkpoint) ([]assessment.Checkpoint, error) {
	for i, c := range assessment.Checkpoints {
		if c == start {
			return assessment.Checkpoints[i:], nil
		}
	}
	return nil, fmt.Errorf("unknown checkpoint %q", start)
}

func runCheckpoints(ctx context.Context, a *app, regID int64, stages []assessment.Checkpoint, policy hydration.Policy) error {
	p := a.prompter
	for i, c := range stages {
		kind, ok := c.Kind()
		if !ok {
			r, err := registration.NewService(a.client).GetRegistration(ctx, regID)
			if err != nil {
				return err
			}
			p.Printf("\n== Profile Verification ==\n")
			terminal.PrintRegistration(p.Out(), r)
			confirmed, err := p.Confirm("Is this the right patient?")
			if err != nil {
				return err
			}
			if !confirmed {
				p.Printf("Stopped before screening.\n")
				return nil
			}
			continue
		}

		err := runAssessment(ctx, a, kind, regID, policy)
		if errors.Is(err, terminal.ErrAborted) {
			p.Printf("Stopped at %s.\n", kind.Title())
			return nil
		}
		if err != nil {
			return err
		}
		if i < len(stages)-1 {
			more, err := p.Confirm("Continue to the next checkpoint?")
			if err != nil {
				return err
			}
			if !more {
				return nil
			}
		}
	}
	p.Printf("\nScreening of registration %d complete.\n", regID)
	return nil
}
