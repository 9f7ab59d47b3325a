// Package cli implements the roster command line interface.
//
// Commands:
//
//	roster serve             serve the HTTP view until interrupted
//	roster list              print the current roster
//	roster register ID NAME  register a student
//	roster remove ID         remove a student
//
// All commands read the configuration file given by --config (config.yml by
// default).
package cli

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/nspcc-dev/neo-go/cli/input"
	"github.com/nspcc-dev/neo-go/pkg/rpcclient"
	"github.com/nspcc-dev/student-roster/internal/api"
	"github.com/nspcc-dev/student-roster/internal/config"
	"github.com/nspcc-dev/student-roster/internal/connection"
	"github.com/nspcc-dev/student-roster/internal/controller"
	"github.com/nspcc-dev/student-roster/internal/gateway"
	"github.com/nspcc-dev/student-roster/internal/metrics"
	"github.com/nspcc-dev/student-roster/internal/roster"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// Version is the application version, set at build time.
var Version = "dev"

// BuildCLI returns the root command.
func BuildCLI() *cobra.Command {
	var configFile string

	rootCmd := &cobra.Command{
		Use:           "roster",
		Short:         "Student roster kept in a Neo N3 smart contract",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "config.yml", "config file path")

	rootCmd.AddCommand(
		buildServeCommand(&configFile),
		buildListCommand(&configFile),
		buildRegisterCommand(&configFile),
		buildRemoveCommand(&configFile),
	)

	return rootCmd
}

func buildServeCommand(configFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the roster over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(*configFile)
			if err != nil {
				return err
			}
			defer a.close()

			warnInteractivePassword(a.log, a.cfg)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			err = a.ctrl.Refresh(ctx)
			if err != nil {
				a.log.Warn("initial roster refresh failed", zap.Error(err))
			}

			srv := api.New(api.Prm{
				Logger:           a.log,
				Controller:       a.ctrl,
				OperationTimeout: a.cfg.Operation.Timeout,
				Metrics:          a.metricsHandler,
			})

			err = srv.ListenAndServe(ctx, a.cfg.HTTP.Listen)
			if err != nil {
				return fmt.Errorf("serve HTTP: %w", err)
			}

			a.log.Info("HTTP server stopped")
			return nil
		},
	}
}

func buildListCommand(configFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Print the roster",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, *configFile, func(ctx context.Context, a *app) error {
				return a.ctrl.Refresh(ctx)
			})
		},
	}
}

func buildRegisterCommand(configFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "register ID NAME",
		Short: "Register a student",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, *configFile, func(ctx context.Context, a *app) error {
				return a.ctrl.Register(ctx, args[0], args[1])
			})
		},
	}
}

func buildRemoveCommand(configFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "remove ID",
		Short: "Remove a student",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, *configFile, func(ctx context.Context, a *app) error {
				return a.ctrl.Remove(ctx, args[0])
			})
		},
	}
}

// withApp runs op within the configured operation timeout and prints the
// resulting roster.
func withApp(cmd *cobra.Command, configFile string, op func(context.Context, *app) error) error {
	a, err := newApp(configFile)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := context.WithTimeout(cmd.Context(), a.cfg.Operation.Timeout)
	defer cancel()

	err = op(ctx, a)
	if err != nil {
		return err
	}

	return printRoster(cmd.OutOrStdout(), a.ctrl.State().Roster)
}

func printRoster(w io.Writer, r *roster.Roster) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	fmt.Fprintln(tw, "ID\tNAME")
	for _, s := range r.Students() {
		fmt.Fprintf(tw, "%d\t%s\n", s.ID, s.Name)
	}

	return tw.Flush()
}

type app struct {
	cfg            config.Config
	log            *zap.Logger
	rpc            rpcConn
	ctrl           *controller.Controller
	metricsHandler http.Handler
}

func newApp(configFile string) (*app, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}

	log, err := newLogger(cfg)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	c, err := dialRPC(context.Background(), cfg)
	if err != nil {
		_ = log.Sync()
		return nil, fmt.Errorf("RPC client dial: %w", err)
	}

	provider := connection.New(connection.Prm{
		Logger:     log,
		RPC:        c,
		WalletPath: cfg.Wallet.Path,
		Address:    cfg.Wallet.Address,
		Password:   passwordFunc(cfg.Wallet.Password),
	})

	a := &app{
		cfg: cfg,
		log: log,
		rpc: c,
	}

	var m *metrics.Collector
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		m = metrics.NewCollector(reg)
		a.metricsHandler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	}

	a.ctrl = controller.New(controller.Prm{
		Logger:         log,
		Authorizer:     provider,
		Binder:         gateway.New(provider),
		Metrics:        m,
		AuthorizeReads: cfg.Operation.AuthorizeReads,
	})

	log.Debug("roster client initialized",
		zap.String("rpc", cfg.RPC.Endpoint),
		zap.String("contract", gateway.ContractAddress))

	return a, nil
}

type rpcConn interface {
	connection.RPC
	Close()
}

// dialRPC connects to the configured node. WebSocket endpoints get a
// persistent connection, others use plain HTTP requests.
func dialRPC(ctx context.Context, cfg config.Config) (rpcConn, error) {
	opts := rpcclient.Options{
		DialTimeout:    cfg.RPC.DialTimeout,
		RequestTimeout: cfg.RPC.RequestTimeout,
	}

	if u, err := url.Parse(cfg.RPC.Endpoint); err == nil && (u.Scheme == "ws" || u.Scheme == "wss") {
		c, err := rpcclient.NewWS(ctx, cfg.RPC.Endpoint, rpcclient.WSOptions{Options: opts})
		if err != nil {
			return nil, err
		}
		return c, nil
	}

	c, err := rpcclient.New(ctx, cfg.RPC.Endpoint, opts)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (a *app) close() {
	a.rpc.Close()
	_ = a.log.Sync()
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	c := zap.NewProductionConfig()
	c.Level = zap.NewAtomicLevelAt(cfg.LogLevel())
	c.Encoding = "console"
	return c.Build()
}

// warnInteractivePassword reports that HTTP-triggered writes will wait for the
// password on the server terminal.
func warnInteractivePassword(log *zap.Logger, cfg config.Config) {
	if cfg.Wallet.Password != "" {
		return
	}
	log.Warn("wallet password is not configured, register and remove requests will block on the terminal prompt",
		zap.String("config", "wallet.password"),
		zap.String("env", config.EnvWalletPassword))
}

// passwordFunc returns the configured password or prompts the terminal for it
// when none is configured.
func passwordFunc(configured string) connection.PasswordFunc {
	if configured != "" {
		return func(context.Context, string) (string, error) {
			return configured, nil
		}
	}

	return func(ctx context.Context, address string) (string, error) {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		return input.ReadPassword(fmt.Sprintf("Enter password for %s > ", address))
	}
}
