package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/aryan0dhankhar/churchconsole/internal/app"
	"github.com/aryan0dhankhar/churchconsole/internal/domain"
	"github.com/aryan0dhankhar/churchconsole/internal/infrastructure/api"
	"github.com/aryan0dhankhar/churchconsole/internal/infrastructure/logger"
	"github.com/aryan0dhankhar/churchconsole/internal/notify"
	"github.com/aryan0dhankhar/churchconsole/pkg/config"
	"github.com/spf13/cobra"
)

func main() {
	c := &cli{out: os.Stdout, errOut: os.Stderr, loadConfig: config.Load}
	if err := newRootCmd(c).Execute(); err != nil {
		os.Exit(1)
	}
}

type cli struct {
	out        io.Writer
	errOut     io.Writer
	loadConfig func() (*config.Config, error)

	apiURL     string
	storageDir string
	logLevel   string

	app *app.App
}

func newRootCmd(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:   "churchconsole",
		Short: "Church admin console session tool",
		Long: `churchconsole signs in to the church admin API, keeps the session token
fresh and remembers the active church and ministry between runs.

Environment Variables:
  API_BASE_URL      API endpoint (default: http://localhost:8081)
  STORAGE_DIR       where the session is kept (default: ~/.churchconsole)
  STORAGE_SECRET    encrypts the stored session when set`,
		SilenceUsage:      true,
		PersistentPreRunE: c.setup,
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if c.app == nil {
				return nil
			}
			return c.app.Close()
		},
	}
	root.SetOut(c.out)
	root.SetErr(c.errOut)

	root.PersistentFlags().StringVar(&c.apiURL, "api", "", "API endpoint, overrides API_BASE_URL")
	root.PersistentFlags().StringVar(&c.storageDir, "storage-dir", "", "session storage directory, overrides STORAGE_DIR")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "warn", "log level written to stderr")

	root.AddCommand(c.authCmd(), c.contextCmd(), c.apiCmd())
	return root
}

func (c *cli) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if c.apiURL != "" {
		cfg.APIBaseURL = c.apiURL
	}
	if c.storageDir != "" {
		cfg.StorageDir = c.storageDir
	}

	log := logger.NewLoggerTo(c.errOut, c.logLevel)
	a, err := app.New(cmd.Context(), cfg, log, app.Options{
		Notifiers: []domain.Notifier{notify.NewWriterNotifier(c.errOut)},
	})
	if err != nil {
		return err
	}
	c.app = a
	return nil
}

func (c *cli) authCmd() *cobra.Command {
	auth := &cobra.Command{
		Use:   "auth",
		Short: "Sign in, sign out and inspect the session",
	}

	var email, password string
	login := &cobra.Command{
		Use:   "login",
		Short: "Sign in with email and password",
		Example: `  churchconsole auth login --email admin@example.org --password changeme
  CHURCHCONSOLE_PASSWORD=changeme churchconsole auth login --email admin@example.org`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				password = os.Getenv("CHURCHCONSOLE_PASSWORD")
			}
			if email == "" || password == "" {
				return errors.New("email and password are required")
			}
			err := c.app.Sessions.Login(cmd.Context(), domain.Credentials{Email: email, Password: password})
			var rateLimited *domain.RateLimitError
			switch {
			case errors.As(err, &rateLimited):
				return fmt.Errorf("too many attempts, retry in %s", rateLimited.RetryAfter.Round(time.Second))
			case errors.Is(err, domain.ErrInvalidCredentials):
				return errors.New("invalid email or password")
			case err != nil:
				return err
			}
			user := c.app.Sessions.User()
			fmt.Fprintf(c.out, "✓ Logged in as %s (%s)\n", user.Name, user.Email)
			return nil
		},
	}
	login.Flags().StringVar(&email, "email", "", "user email")
	login.Flags().StringVar(&password, "password", "", "password (or CHURCHCONSOLE_PASSWORD)")

	logout := &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.app.Sessions.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(c.out, "✓ Logged out")
			return nil
		},
	}

	status := &cobra.Command{
		Use:   "status",
		Short: "Show the session state",
		RunE: func(cmd *cobra.Command, args []string) error {
			snap := c.app.Sessions.Snapshot()
			if !snap.Authorized() {
				fmt.Fprintln(c.out, "Not logged in")
				return nil
			}
			fmt.Fprintf(c.out, "Logged in as %s (%s)\n", snap.User.Name, snap.User.Email)
			if exp, ok := c.app.Clock.ExpiresAt(snap.Token); ok {
				fmt.Fprintf(c.out, "Token expires %s (in %s)\n", exp.Format(time.RFC3339), time.Until(exp).Round(time.Second))
			}
			return nil
		},
	}

	auth.AddCommand(login, logout, status)
	return auth
}

func (c *cli) contextCmd() *cobra.Command {
	ctxCmd := &cobra.Command{
		Use:   "context",
		Short: "Show or change the active church and ministry",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "List available churches and ministries",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.requireSession(); err != nil {
				return err
			}
			c.printContext(c.app.Tenants.Context())
			return nil
		},
	}

	useChurch := &cobra.Command{
		Use:   "use-church <id>",
		Short: "Make a church active",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.requireSession(); err != nil {
				return err
			}
			if err := c.app.Tenants.SetActiveChurch(cmd.Context(), domain.ID(args[0])); err != nil {
				return err
			}
			c.printContext(c.app.Tenants.Context())
			return nil
		},
	}

	useMinistry := &cobra.Command{
		Use:   "use-ministry <id|none>",
		Short: "Make a ministry active, or clear it with none",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.requireSession(); err != nil {
				return err
			}
			id := domain.ID(args[0])
			if strings.EqualFold(args[0], "none") {
				id = ""
			}
			if err := c.app.Tenants.SetActiveMinistry(cmd.Context(), id); err != nil {
				return err
			}
			c.printContext(c.app.Tenants.Context())
			return nil
		},
	}

	ctxCmd.AddCommand(show, useChurch, useMinistry)
	return ctxCmd
}

func (c *cli) apiCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "api",
		Short: "Call the API with the session token",
	}

	get := &cobra.Command{
		Use:     "get <path>",
		Short:   "GET a path and print the JSON response",
		Example: "  churchconsole api get /me",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.requireSession(); err != nil {
				return err
			}
			var raw json.RawMessage
			if err := c.app.Authed.Get(c.scoped(cmd.Context()), args[0], &raw); err != nil {
				return err
			}
			var pretty interface{}
			if err := json.Unmarshal(raw, &pretty); err != nil {
				return err
			}
			enc := json.NewEncoder(c.out)
			enc.SetIndent("", "  ")
			return enc.Encode(pretty)
		},
	}

	cmd.AddCommand(get)
	return cmd
}

// scoped adds the active church and ministry as request headers
func (c *cli) scoped(ctx context.Context) context.Context {
	return api.WithTenantScope(ctx, c.app.Tenants.ActiveChurchID(), c.app.Tenants.ActiveMinistryID())
}

func (c *cli) requireSession() error {
	if !c.app.Sessions.Snapshot().Authorized() {
		return errors.New("not logged in, run: churchconsole auth login")
	}
	return nil
}

func (c *cli) printContext(tc domain.TenantContext) {
	w := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "\tCHURCH\tNAME")
	for _, ch := range tc.AvailableChurches {
		fmt.Fprintf(w, "%s\t%s\t%s\n", marker(ch.ID == tc.ActiveChurchID), ch.ID, ch.Name)
	}
	w.Flush()

	if len(tc.AvailableMinistries) == 0 {
		return
	}
	fmt.Fprintln(c.out)
	w = tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "\tMINISTRY\tNAME\tCHURCH")
	for _, m := range tc.AvailableMinistries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", marker(m.ID == tc.ActiveMinistryID), m.ID, m.Name, m.ChurchID())
	}
	w.Flush()
}

func marker(active bool) string {
	if active {
		return "*"
	}
	return ""
}
