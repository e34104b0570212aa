package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/psantana5/buildtime-profiler/internal/api"
	"github.com/psantana5/buildtime-profiler/internal/profiler"
	"github.com/psantana5/buildtime-profiler/internal/publish"
	"github.com/psantana5/buildtime-profiler/internal/report"
	"github.com/psantana5/buildtime-profiler/pkg/auth"
	"github.com/psantana5/buildtime-profiler/pkg/metrics"
	"github.com/psantana5/buildtime-profiler/pkg/ratelimit"
	"github.com/psantana5/buildtime-profiler/pkg/shutdown"
	btls "github.com/psantana5/buildtime-profiler/pkg/tls"
)

var serveProjectDir string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Profile a live build over HTTP",
	Long: `Starts an ingestion server for one build. The orchestrator pushes events to
POST /events or POST /events/batch and calls POST /finish when the session
ends; the report is then served at GET /report and GET /document and
published to the configured sinks.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "listen address (default from config, :8080)")
	serveCmd.Flags().String("token", "", "ingest bearer token, raw or bcrypt hash (default from config; generated when unset)")
	serveCmd.Flags().String("tls-cert", "", "TLS certificate file (default from config)")
	serveCmd.Flags().String("tls-key", "", "TLS key file (default from config)")
	serveCmd.Flags().StringVar(&serveProjectDir, "project-dir", ".", "project directory inspected for source control metadata")

	_ = v.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))
	_ = v.BindPFlag("server.token", serveCmd.Flags().Lookup("token"))
	_ = v.BindPFlag("server.tls_cert", serveCmd.Flags().Lookup("tls-cert"))
	_ = v.BindPFlag("server.tls_key", serveCmd.Flags().Lookup("tls-key"))
}

// ingestClient names the orchestrator in logs and rate limit keys
const ingestClient = "orchestrator"

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rec := metrics.NewPrometheusRecorder(nil)
	prof := profiler.New(profiler.Options{Logger: logger, Recorder: rec})
	pub := publish.New(ctx, cfg, logger, publish.WithProjectDir(serveProjectDir), publish.WithVersion(Version))

	tokens := auth.NewTokenManager()
	if cfg.Server.Token != "" {
		if err := tokens.AddToken(ingestClient, cfg.Server.Token, cfg.Server.TokenTTL); err != nil {
			return err
		}
	} else {
		token, err := tokens.GenerateToken(ingestClient, cfg.Server.TokenTTL)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Ingest token: %s\n", token)
		logger.Warn("No server.token configured; generated an ingest token for this run")
	}

	opts := api.Options{
		Profiler:     prof,
		IgnoreFields: cfg.IgnoreFields,
		Registry:     rec.Registry(),
		Tokens:       tokens,
		Tracer:       pub.Tracer(),
		Logger:       logger,
		OnFinish: func(ctx context.Context, result *report.Result) {
			_ = pub.Publish(ctx, prof, rec.Registry())
		},
	}
	if cfg.Server.RateLimit > 0 {
		opts.Limiter = ratelimit.NewLimiter(cfg.Server.RateLimit, cfg.Server.Burst)
	}
	server := api.NewServer(opts)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
	}
	if cfg.Server.TLSEnabled() {
		tlsCfg, err := btls.ServerConfig(cfg.Server.TLSCert, cfg.Server.TLSKey, cfg.Server.TLSClientCA)
		if err != nil {
			return err
		}
		srv.TLSConfig = tlsCfg
	}

	mgr := shutdown.New(cfg.Server.ShutdownTimeout, logger)
	mgr.Register("publisher", pub.Close)
	mgr.Register("http", shutdown.StopHTTPServer(srv))

	go server.RunJanitor(ctx, api.DefaultSweepInterval, api.DefaultClientIdle)

	var listenErr error
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		logger.Info("Ingestion server listening", map[string]interface{}{
			"addr": cfg.Server.Addr,
			"tls":  srv.TLSConfig != nil,
		})
		var err error
		if srv.TLSConfig != nil {
			err = srv.ListenAndServeTLS("", "")
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Ingestion server failed", map[string]interface{}{"error": err.Error()})
			listenErr = fmt.Errorf("ingestion server: %w", err)
			cancel()
		}
	}()

	err := mgr.WaitWithContext(ctx)
	<-stopped
	return errors.Join(listenErr, err)
}
