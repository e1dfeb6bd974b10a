// Command formkit is a terminal client for the admin backend: sign in, page
// through collections, fill entity forms, upload files and pick options.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/bndr/gotabulate"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/goliatone/go-formkit/pkg/api"
	"github.com/goliatone/go-formkit/pkg/config"
	"github.com/goliatone/go-formkit/pkg/logging"
	"github.com/goliatone/go-formkit/pkg/prompt"
	"github.com/goliatone/go-formkit/pkg/session"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{driver: prompt.NewSurveyDriver()}
	if err := a.execute(ctx, newRootCmd(a)); err != nil {
		os.Exit(1)
	}
}

// app carries everything a command needs. It is filled in by the root
// command's pre-run hook.
type app struct {
	driver prompt.Driver
	lookup func(string) (string, bool)

	configPath  string
	envFile     string
	apiURL      string
	sessionPath string
	verbose     bool

	cfg     config.Config
	logger  *zap.Logger
	flush   func()
	store   *session.GormStore
	session *session.Session
	client  *api.Client
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "formkit",
		Short:         "Terminal client for the admin backend",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd.Context())
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "formkit.yaml", "YAML config file (ignored when missing)")
	flags.StringVar(&a.envFile, "env-file", ".env", "dotenv file with FORMKIT_* overrides")
	flags.StringVar(&a.apiURL, "api-url", "", "backend base URL (overrides config)")
	flags.StringVar(&a.sessionPath, "session", "", "session database path (overrides config)")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		newLoginCmd(a),
		newLogoutCmd(a),
		newPasswordCmd(a),
		newListCmd(a),
		newCreateCmd(a),
		newUploadCmd(a),
		newPickCmd(a),
		newSchemasCmd(a),
	)
	return root
}

func (a *app) setup(ctx context.Context) error {
	var opts []config.Option
	opts = append(opts, config.WithEnvFile(a.envFile))
	if a.lookup != nil {
		opts = append(opts, config.WithLookup(a.lookup))
	}
	cfg, err := config.Load(a.configPath, opts...)
	if err != nil {
		return err
	}
	if a.apiURL != "" {
		cfg.API.BaseURL = a.apiURL
	}
	if a.sessionPath != "" {
		cfg.Session.Path = a.sessionPath
	}
	if a.verbose {
		cfg.Log.Level = "debug"
	}
	a.cfg = cfg

	logger, flush, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	a.logger, a.flush = logger, flush

	store, err := session.OpenGormStore(cfg.Session.Path)
	if err != nil {
		return err
	}
	a.store = store
	sess, err := session.Open(ctx, store, session.WithLogger(logger))
	if err != nil {
		return err
	}
	a.session = sess

	a.client = api.New(cfg.API.BaseURL,
		api.WithTimeout(cfg.API.Timeout),
		api.WithTokenSource(sess),
		api.WithLogger(logger),
		api.WithUnauthorized(func(ctx context.Context) {
			if err := sess.Invalidate(ctx); err != nil {
				logger.Warn("drop rejected session", zap.Error(err))
			}
		}),
	)
	return nil
}

// execute runs root and releases the session store and log sinks whether or
// not the command succeeded.
func (a *app) execute(ctx context.Context, root *cobra.Command) error {
	defer a.teardown()
	return root.ExecuteContext(ctx)
}

func (a *app) teardown() {
	if a.store != nil {
		_ = a.store.Close()
		a.store = nil
	}
	if a.flush != nil {
		a.flush()
		a.flush = nil
	}
}

func (a *app) requireLogin() error {
	if !a.session.Authenticated() {
		return fmt.Errorf("not logged in; run formkit login")
	}
	return nil
}

func printTable(cmd *cobra.Command, headers []string, rows [][]string) {
	t := gotabulate.Create(rows)
	t.SetHeaders(headers)
	t.SetAlign("left")
	printf(cmd.OutOrStdout(), "%s", t.Render("grid"))
}

func printf(w io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
