package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/eyescreen/screening/internal/config"
	"github.com/eyescreen/screening/internal/domain/account"
	"github.com/eyescreen/screening/internal/domain/registration"
	"github.com/eyescreen/screening/internal/flow/attachments"
	"github.com/eyescreen/screening/internal/platform/apiclient"
	"github.com/eyescreen/screening/internal/platform/logging"
	"github.com/eyescreen/screening/internal/platform/notify"
	"github.com/eyescreen/screening/internal/platform/session"
	"github.com/eyescreen/screening/internal/terminal"
	"github.com/eyescreen/screening/pkg/pagination"
)

var errNotSignedIn = errors.New("not signed in: run `screening login` first")

func main() {
	rootCmd := &cobra.Command{
		Use:           "screening",
		Short:         "Eye screening field client",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(loginCmd())
	rootCmd.AddCommand(logoutCmd())
	rootCmd.AddCommand(whoamiCmd())
	rootCmd.AddCommand(eventsCmd())
	rootCmd.AddCommand(registrationsCmd())
	rootCmd.AddCommand(patientsCmd())
	rootCmd.AddCommand(assessCmd())
	rootCmd.AddCommand(checkpointCmd())
	rootCmd.AddCommand(sandboxCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// app holds what every client command shares: one session, injected into
// the HTTP client and the prompts alike.
type app struct {
	cfg      *config.Config
	logger   zerolog.Logger
	session  *session.Session
	client   *apiclient.Client
	uploader *attachments.Uploader
	prompter *terminal.Prompter
}

func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	errOut := cmd.ErrOrStderr()
	logger := logging.New(cfg, errOut)

	sess := session.New(session.NewFileStore(cfg.SessionFile))
	if err := sess.Restore(); err != nil {
		logger.Warn().Err(err).Msg("ignoring unreadable session file")
	}

	notifier := notify.Multi(notify.NewWriter(errOut), notify.NewLog(logger))
	client, err := apiclient.New(apiclient.Config{
		BaseURL: cfg.APIBaseURL,
		Timeout: cfg.RequestTimeout,
		OnUnauthorized: func() {
			fmt.Fprintln(errOut, "Your session has ended. Run `screening login` to sign in again.")
		},
	}, sess, notifier, logger)
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:      cfg,
		logger:   logger,
		session:  sess,
		client:   client,
		uploader: attachments.NewUploader(client, notifier, logger),
		prompter: terminal.NewPrompter(cmd.InOrStdin(), cmd.OutOrStdout()),
	}, nil
}

func (a *app) requireAuth() error {
	if !a.session.Authenticated() {
		return errNotSignedIn
	}
	return nil
}

// finishUploads waits for background attachment uploads before the process
// exits and reports the ones that failed.
func (a *app) finishUploads() error {
	results := a.uploader.Wait()
	failed := attachments.Failed(results)
	for _, r := range failed {
		a.prompter.Printf("! upload of %s for registration %d failed: %v\n", r.Upload.Type, r.Upload.RegistrationID, r.Err)
	}
	if len(failed) > 0 {
		return fmt.Errorf("%d of %d attachment upload(s) failed", len(failed), len(results))
	}
	if len(results) > 0 {
		a.prompter.Printf("%d attachment(s) uploaded.\n", len(results))
	}
	return nil
}

// -- Account --

func loginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session token",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			email, _ := cmd.Flags().GetString("email")
			password, _ := cmd.Flags().GetString("password")
			if email == "" {
				if email, err = a.prompter.Ask("Email"); err != nil {
					return err
				}
			}
			if password == "" {
				if password, err = a.prompter.Ask("Password"); err != nil {
					return err
				}
			}

			user, err := account.NewService(a.client).Login(cmd.Context(), account.Credentials{Email: email, Password: password})
			if err != nil {
				var apiErr *apiclient.APIError
				if errors.As(err, &apiErr) && !apiErr.IsNetworkError {
					return errors.New(apiErr.Message)
				}
				return err
			}
			a.prompter.Printf("Signed in as %s (%s).\n", user.Name, user.Email)
			return nil
		},
	}
	cmd.Flags().String("email", "", "Operator email")
	cmd.Flags().String("password", "", "Operator password (prompted when empty)")
	return cmd
}

func logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			if err := account.NewService(a.client).Logout(cmd.Context()); err != nil {
				return err
			}
			a.prompter.Printf("Signed out.\n")
			return nil
		},
	}
}

func whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in operator",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			if err := a.requireAuth(); err != nil {
				return err
			}
			user, err := account.NewService(a.client).Me(cmd.Context())
			if err != nil {
				return err
			}
			terminal.PrintTable(a.prompter.Out(), []string{"ID", "NAME", "EMAIL", "ROLE"},
				[][]string{{strconv.FormatInt(user.ID, 10), user.Name, user.Email, user.Role}})
			if exp, ok := session.ExpiresAt(a.session.Token()); ok {
				a.prompter.Printf("Session expires %s.\n", exp.Local().Format("2006-01-02 15:04"))
			}
			return nil
		},
	}
}

// -- Read context --

func pageFlags(cmd *cobra.Command) {
	cmd.Flags().Int("page", 1, "Page number")
	cmd.Flags().Int("per-page", pagination.DefaultPerPage, "Items per page")
}

func pageParams(cmd *cobra.Command) pagination.Params {
	page, _ := cmd.Flags().GetInt("page")
	perPage, _ := cmd.Flags().GetInt("per-page")
	return pagination.Normalize(page, perPage)
}

func printPageFooter[T any](out io.Writer, pg *pagination.Page[T]) {
	if pg.Total == 0 {
		fmt.Fprintln(out, "No results.")
		return
	}
	fmt.Fprintf(out, "\nShowing %d-%d of %d (page %d of %d)\n", pg.From, pg.To, pg.Total, pg.CurrentPage, pg.LastPage)
}

func idArg(args []string) (int64, error) {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", args[0])
	}
	return id, nil
}

// withRegistrations runs fn with a signed-in registration service.
func withRegistrations(cmd *cobra.Command, fn func(ctx context.Context, a *app, svc *registration.Service) error) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	if err := a.requireAuth(); err != nil {
		return err
	}
	return fn(cmd.Context(), a, registration.NewService(a.client))
}

func eventsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Browse screening events",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRegistrations(cmd, func(ctx context.Context, a *app, svc *registration.Service) error {
				pg, err := svc.ListEvents(ctx, pageParams(cmd))
				if err != nil {
					return err
				}
				rows := make([][]string, 0, len(pg.Data))
				for _, ev := range pg.Data {
					rows = append(rows, []string{strconv.FormatInt(ev.ID, 10), ev.Name, ev.Location, ev.StartDate, ev.EndDate, ev.Status})
				}
				terminal.PrintTable(a.prompter.Out(), []string{"ID", "NAME", "LOCATION", "START", "END", "STATUS"}, rows)
				printPageFooter(a.prompter.Out(), pg)
				return nil
			})
		},
	}
	pageFlags(listCmd)
	cmd.AddCommand(listCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "get <id>",
		Short: "Show one event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := idArg(args)
			if err != nil {
				return err
			}
			return withRegistrations(cmd, func(ctx context.Context, a *app, svc *registration.Service) error {
				ev, err := svc.GetEvent(ctx, id)
				if err != nil {
					return err
				}
				terminal.PrintTable(a.prompter.Out(), []string{"ID", "NAME", "LOCATION", "START", "END", "STATUS"},
					[][]string{{strconv.FormatInt(ev.ID, 10), ev.Name, ev.Location, ev.StartDate, ev.EndDate, ev.Status}})
				return nil
			})
		},
	})
	return cmd
}

func registrationsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "registrations",
		Short: "Browse event registrations",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List registrations, optionally for one event",
		RunE: func(cmd *cobra.Command, args []string) error {
			eventID, _ := cmd.Flags().GetInt64("event")
			return withRegistrations(cmd, func(ctx context.Context, a *app, svc *registration.Service) error {
				pg, err := svc.ListRegistrations(ctx, eventID, pageParams(cmd))
				if err != nil {
					return err
				}
				rows := make([][]string, 0, len(pg.Data))
				for _, r := range pg.Data {
					patient := ""
					if r.Patient != nil {
						patient = r.Patient.Name
					}
					rows = append(rows, []string{strconv.FormatInt(r.ID, 10), r.ReferenceNumber, patient, strconv.FormatInt(r.EventID, 10), r.AttendanceStatus})
				}
				terminal.PrintTable(a.prompter.Out(), []string{"ID", "REFERENCE", "PATIENT", "EVENT", "STATUS"}, rows)
				printPageFooter(a.prompter.Out(), pg)
				return nil
			})
		},
	}
	listCmd.Flags().Int64("event", 0, "Only registrations of this event")
	pageFlags(listCmd)
	cmd.AddCommand(listCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "get <id>",
		Short: "Show a registration with its patient and event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := idArg(args)
			if err != nil {
				return err
			}
			return withRegistrations(cmd, func(ctx context.Context, a *app, svc *registration.Service) error {
				r, err := svc.GetRegistration(ctx, id)
				if err != nil {
					return err
				}
				terminal.PrintRegistration(a.prompter.Out(), r)
				return nil
			})
		},
	})
	return cmd
}

func patientsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "patients",
		Short: "Browse patients",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List patients, optionally matching a name or identity number",
		RunE: func(cmd *cobra.Command, args []string) error {
			search, _ := cmd.Flags().GetString("search")
			return withRegistrations(cmd, func(ctx context.Context, a *app, svc *registration.Service) error {
				pg, err := svc.ListPatients(ctx, search, pageParams(cmd))
				if err != nil {
					return err
				}
				rows := make([][]string, 0, len(pg.Data))
				for _, p := range pg.Data {
					rows = append(rows, []string{strconv.FormatInt(p.ID, 10), p.Name, p.IdentityNumber, p.DateOfBirth, p.Gender})
				}
				terminal.PrintTable(a.prompter.Out(), []string{"ID", "NAME", "IDENTITY NO.", "BORN", "GENDER"}, rows)
				printPageFooter(a.prompter.Out(), pg)
				return nil
			})
		},
	}
	listCmd.Flags().String("search", "", "Name or identity number fragment")
	pageFlags(listCmd)
	cmd.AddCommand(listCmd)
	return cmd
}
