// Package publish ships a finished build to everything outside the
// process: the metrics textfile, the telemetry sinks and the trace
// collector.
package publish

// If the profiler fails, the build MUST continue.
// If we are unsure, DO LESS.
// Observation only, never control.

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/psantana5/buildtime-profiler/internal/config"
	"github.com/psantana5/buildtime-profiler/internal/profiler"
	"github.com/psantana5/buildtime-profiler/pkg/logging"
	"github.com/psantana5/buildtime-profiler/pkg/metrics"
	"github.com/psantana5/buildtime-profiler/pkg/retry"
	"github.com/psantana5/buildtime-profiler/pkg/scm"
	"github.com/psantana5/buildtime-profiler/pkg/sink"
	"github.com/psantana5/buildtime-profiler/pkg/sysinfo"
	btls "github.com/psantana5/buildtime-profiler/pkg/tls"
	"github.com/psantana5/buildtime-profiler/pkg/tracing"
)

// Publisher delivers one build's results
type Publisher struct {
	cfg        *config.Config
	log        *logging.Logger
	sinks      *sink.Multi
	tracer     *tracing.Provider
	projectDir string
	version    string
}

// Option customises a Publisher
type Option func(*Publisher)

// WithSinks replaces the sinks built from configuration
func WithSinks(sinks ...sink.Sink) Option {
	return func(p *Publisher) { p.sinks = sink.NewMulti(p.log, sinks...) }
}

// WithTracer replaces the provider built from configuration
func WithTracer(tp *tracing.Provider) Option {
	return func(p *Publisher) { p.tracer = tp }
}

// WithProjectDir sets the directory inspected for source control metadata
func WithProjectDir(dir string) Option {
	return func(p *Publisher) { p.projectDir = dir }
}

// WithVersion sets the service version reported with traces
func WithVersion(version string) Option {
	return func(p *Publisher) { p.version = version }
}

// New builds the sinks and tracer enabled in cfg. Sinks that cannot be
// created are logged and skipped.
func New(ctx context.Context, cfg *config.Config, log *logging.Logger, opts ...Option) *Publisher {
	if log == nil {
		log = logging.Nop()
	}
	p := &Publisher{cfg: cfg, log: log.WithComponent("publish"), projectDir: "."}
	for _, opt := range opts {
		opt(p)
	}
	if p.sinks == nil {
		p.sinks = sink.NewMulti(p.log, buildSinks(cfg, p.log)...)
	}
	if p.tracer == nil && cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer(ctx, tracing.Config{
			ServiceName:    cfg.Tracing.ServiceName,
			ServiceVersion: p.version,
			OTLPEndpoint:   cfg.Tracing.Endpoint,
			Insecure:       cfg.Tracing.Insecure,
			Enabled:        true,
		}, p.log)
		if err != nil {
			p.log.Warn("Tracing unavailable", map[string]interface{}{"error": err.Error()})
		} else {
			p.tracer = tp
		}
	}
	return p
}

func buildSinks(cfg *config.Config, log *logging.Logger) []sink.Sink {
	var sinks []sink.Sink
	if cfg.Elasticsearch.Enabled {
		es, err := elasticsearchSink(cfg.Elasticsearch, log)
		if err != nil {
			log.Warn("Elasticsearch sink unavailable", map[string]interface{}{"error": err.Error()})
		} else {
			sinks = append(sinks, es)
		}
	}
	if cfg.NATS.Enabled {
		ns, err := sink.NewNATSSink(sink.NATSConfig{
			URL:     cfg.NATS.URL,
			Subject: cfg.NATS.Subject,
			Timeout: cfg.NATS.Timeout,
		}, log)
		if err != nil {
			log.Warn("NATS sink unavailable", map[string]interface{}{"error": err.Error()})
		} else {
			sinks = append(sinks, ns)
		}
	}
	return sinks
}

func elasticsearchSink(cfg config.ElasticsearchConfig, log *logging.Logger) (*sink.ElasticsearchSink, error) {
	esCfg := sink.ElasticsearchConfig{
		Address:     cfg.Address,
		Index:       cfg.Index,
		MappingFile: cfg.MappingFile,
		Timeout:     cfg.Timeout,
		Retry:       retry.DefaultConfig(),
	}
	if cfg.CAFile != "" {
		tlsCfg, err := btls.ClientConfig(cfg.CAFile, "", "")
		if err != nil {
			return nil, err
		}
		esCfg.TLS = tlsCfg
	}
	return sink.NewElasticsearchSink(esCfg, log)
}

// Sinks returns the number of active telemetry sinks
func (p *Publisher) Sinks() int {
	return p.sinks.Len()
}

// Tracer returns the configured trace provider, nil when tracing is off
func (p *Publisher) Tracer() *tracing.Provider {
	return p.tracer
}

// Publish runs every enabled stage. Each stage fails on its own; the
// joined error is informational and never means the build failed.
func (p *Publisher) Publish(ctx context.Context, prof *profiler.Profiler, gatherer prometheus.Gatherer) error {
	var errs []error

	if path := p.cfg.Metrics.TextFile; path != "" && gatherer != nil {
		if err := p.stage(ctx, "metrics", func(context.Context) error {
			return metrics.WriteTextFile(gatherer, path)
		}); err != nil {
			errs = append(errs, fmt.Errorf("metrics textfile: %w", err))
		} else {
			p.log.Info("Metrics written", map[string]interface{}{"path": path})
		}
	}

	if p.sinks.Len() > 0 {
		if err := p.stage(ctx, "telemetry", func(ctx context.Context) error {
			return p.sendTelemetry(ctx, prof)
		}); err != nil {
			errs = append(errs, fmt.Errorf("telemetry: %w", err))
		}
	}

	if p.tracer != nil {
		if records := prof.SpanRecords(); len(records) > 0 {
			if err := p.stage(ctx, "traces", func(ctx context.Context) error {
				return p.tracer.ExportSpans(ctx, records)
			}); err != nil {
				errs = append(errs, fmt.Errorf("traces: %w", err))
			} else {
				p.log.Info("Build trace exported", map[string]interface{}{"spans": len(records)})
			}
		}
	}

	err := errors.Join(errs...)
	if err != nil {
		p.log.Warn("Publishing incomplete", map[string]interface{}{"error": err.Error()})
	}
	return err
}

// stage runs fn inside a "publish.<name>" span when tracing is on
func (p *Publisher) stage(ctx context.Context, name string, fn func(context.Context) error) error {
	if p.tracer == nil {
		return fn(ctx)
	}
	ctx, span := p.tracer.StartSpan(ctx, "publish."+name)
	defer span.End()
	err := fn(ctx)
	if err != nil {
		tracing.SetError(ctx, err)
	}
	return err
}

func (p *Publisher) sendTelemetry(ctx context.Context, prof *profiler.Profiler) error {
	var system, source interface{}

	if info, err := sysinfo.Collect(ctx); info != nil {
		if err != nil {
			p.log.Debug("Partial host inventory", map[string]interface{}{"error": err.Error()})
		}
		system = info
	}

	if info, err := scm.Detect(p.projectDir); err != nil {
		p.log.Debug("No source control metadata", map[string]interface{}{"error": err.Error()})
	} else if !info.IsZero() {
		source = info
	}

	payload, err := prof.Telemetry(p.cfg.IgnoreFields, system, source)
	if err != nil {
		p.log.Warn("Sending incomplete telemetry", map[string]interface{}{"error": err.Error()})
	}
	return p.sinks.Send(ctx, payload)
}

// Close releases sinks and flushes the tracer
func (p *Publisher) Close(ctx context.Context) error {
	var errs []error
	if err := p.sinks.Close(); err != nil {
		errs = append(errs, err)
	}
	if p.tracer != nil {
		if err := p.tracer.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
