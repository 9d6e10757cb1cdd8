// Command authbroker hosts the configured OAuth2 strategies over HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/jeremyhahn/go-oauth-strategy/internal/log"
	"github.com/jeremyhahn/go-oauth-strategy/pkg/config"
)

var version = "dev"

type options struct {
	configPath string
	envFiles   []string
	logLevel   string
}

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	opts := &options{
		configPath: envOr("AUTHBROKER_CONFIG", "authbroker.yaml"),
		envFiles:   []string{".env"},
	}

	root := &cobra.Command{
		Use:          "authbroker",
		Short:        "OAuth2 authorization-code broker for Divvy, Ultrareg and custom providers",
		SilenceUsage: true,
	}
	root.SetOut(out)

	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", opts.configPath, "config file (env AUTHBROKER_CONFIG)")
	root.PersistentFlags().StringSliceVar(&opts.envFiles, "env-file", opts.envFiles, "dotenv files loaded before the config; missing files are skipped")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "overrides log_level from the config file")

	root.AddCommand(newServeCmd(opts), newAuthorizeURLCmd(opts), newVersionCmd())
	return root
}

func loadDocument(opts *options) (*config.Document, error) {
	if err := config.LoadEnvFiles(opts.envFiles...); err != nil {
		return nil, err
	}
	doc, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}

	level := doc.LogLevel
	if opts.logLevel != "" {
		level = opts.logLevel
	}
	log.SetLevel(log.ParseLevel(level))
	return doc, nil
}

func newServeCmd(opts *options) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the strategy routes and /metrics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			doc, err := loadDocument(opts)
			if err != nil {
				return err
			}
			if listen != "" {
				doc.Listen = listen
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, doc)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "overrides listen from the config file")
	return cmd
}

func serve(ctx context.Context, doc *config.Document) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	svc, err := doc.Build(reg)
	if err != nil {
		return err
	}
	defer svc.Close()

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	r.Mount("/", svc.Handler())

	srv := &http.Server{
		Addr:              doc.Listen,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx).Str("addr", doc.Listen).Strs("strategies", svc.Names()).Msg("authbroker: listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	log.Info(ctx).Msg("authbroker: shutting down")
	return srv.Shutdown(shutdownCtx)
}

func newAuthorizeURLCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "authorize-url <strategy>",
		Short: "Print the provider authorize URL for a configured strategy",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := loadDocument(opts)
			if err != nil {
				return err
			}
			svc, err := doc.Build(nil)
			if err != nil {
				return err
			}
			defer svc.Close()

			u, err := svc.AuthorizationURL(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), u)
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
