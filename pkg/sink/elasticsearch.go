package sink

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/psantana5/buildtime-profiler/pkg/logging"
	"github.com/psantana5/buildtime-profiler/pkg/retry"
)

const sinkElasticsearch = "elasticsearch"

// ElasticsearchConfig configures the search index sink
type ElasticsearchConfig struct {
	Address     string        // base URL, e.g. "http://localhost:9200"
	Index       string        // lowercased before use
	MappingFile string        // optional index mapping applied on creation
	Timeout     time.Duration // per request
	Retry       retry.Config
	TLS         *tls.Config // nil uses the system defaults
}

// ElasticsearchSink indexes the payload as one document per build
type ElasticsearchSink struct {
	cfg        ElasticsearchConfig
	index      string
	client     *elasticsearch.Client
	transport  *http.Transport
	classifier ErrorClassifier
	log        *logging.Logger
}

// NewElasticsearchSink creates the sink. No request is made until Send.
func NewElasticsearchSink(cfg ElasticsearchConfig, log *logging.Logger) (*ElasticsearchSink, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.TLS != nil {
		transport.TLSClientConfig = cfg.TLS
	}
	// retries are driven by retry.Do so failures are classified once
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses:    []string{strings.TrimRight(cfg.Address, "/")},
		Transport:    transport,
		DisableRetry: true,
	})
	if err != nil {
		return nil, NewSinkError(ErrorTypePermanent, sinkElasticsearch, "connect", 0, "invalid client configuration", err)
	}
	return &ElasticsearchSink{
		cfg:       cfg,
		index:     strings.ToLower(cfg.Index),
		client:    client,
		transport: transport,
		log:       log.WithComponent("elasticsearch"),
	}, nil
}

// Name implements Sink
func (s *ElasticsearchSink) Name() string {
	return sinkElasticsearch
}

// Index returns the effective (lowercased) index name
func (s *ElasticsearchSink) Index() string {
	return s.index
}

// EnsureIndex creates the index with the configured mapping when it does
// not exist yet.
func (s *ElasticsearchSink) EnsureIndex(ctx context.Context) error {
	reqCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	exists := s.client.Indices.Exists
	res, err := exists([]string{s.index}, exists.WithContext(reqCtx))
	if err != nil {
		return s.wrap("ensure_index", 0, err)
	}
	status, _, err := readResponse(res)
	if err != nil {
		return s.wrap("ensure_index", status, err)
	}
	switch {
	case status == http.StatusOK:
		return nil
	case status != http.StatusNotFound:
		return s.statusError("ensure_index", status, nil)
	}

	create := s.client.Indices.Create
	opts := []func(*esapi.IndicesCreateRequest){create.WithContext(reqCtx)}
	if s.cfg.MappingFile != "" {
		mapping, err := os.ReadFile(s.cfg.MappingFile)
		if err != nil {
			return NewSinkError(ErrorTypePermanent, sinkElasticsearch, "ensure_index", 0, "failed to read mapping file", err)
		}
		if !json.Valid(mapping) {
			return NewSinkError(ErrorTypePermanent, sinkElasticsearch, "ensure_index", 0, "mapping file is not valid JSON", nil)
		}
		opts = append(opts, create.WithBody(bytes.NewReader(mapping)))
	}

	res, err = create(s.index, opts...)
	if err != nil {
		return s.wrap("create_index", 0, err)
	}
	status, body, err := readResponse(res)
	if err != nil {
		return s.wrap("create_index", status, err)
	}
	// a concurrent build may have created it in the meantime
	if status >= 300 && !bytes.Contains(body, []byte("resource_already_exists_exception")) {
		return s.statusError("create_index", status, body)
	}
	s.log.Info("Created index", map[string]interface{}{"index": s.index})
	return nil
}

// Send makes sure the index exists and indexes payload, retrying transient
// failures.
func (s *ElasticsearchSink) Send(ctx context.Context, payload interface{}) error {
	doc, err := json.Marshal(payload)
	if err != nil {
		return NewSinkError(ErrorTypePermanent, sinkElasticsearch, "index", 0, "failed to encode payload", err)
	}

	return retry.Do(ctx, s.retryConfig(), func() error {
		if err := s.EnsureIndex(ctx); err != nil {
			return s.retryable(err)
		}
		return s.retryable(s.indexDocument(ctx, doc))
	})
}

func (s *ElasticsearchSink) indexDocument(ctx context.Context, doc []byte) error {
	reqCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	res, err := s.client.Index(s.index, bytes.NewReader(doc), s.client.Index.WithContext(reqCtx))
	if err != nil {
		return s.wrap("index", 0, err)
	}
	status, body, err := readResponse(res)
	if err != nil {
		return s.wrap("index", status, err)
	}
	if res.IsError() {
		return s.statusError("index", status, body)
	}
	s.log.Debug("Indexed document", map[string]interface{}{"index": s.index, "bytes": len(doc)})
	return nil
}

// Close implements Sink
func (s *ElasticsearchSink) Close() error {
	s.transport.CloseIdleConnections()
	return nil
}

func (s *ElasticsearchSink) retryConfig() retry.Config {
	if s.cfg.Retry.Multiplier == 0 {
		return retry.DefaultConfig()
	}
	return s.cfg.Retry
}

// readResponse drains and closes the body so the connection is reused
func readResponse(res *esapi.Response) (int, []byte, error) {
	defer res.Body.Close()
	data, err := io.ReadAll(io.LimitReader(res.Body, 64*1024))
	return res.StatusCode, data, err
}

func (s *ElasticsearchSink) wrap(operation string, status int, err error) *SinkError {
	return NewSinkError(s.classifier.Classify(err), sinkElasticsearch, operation, status, "", err)
}

func (s *ElasticsearchSink) statusError(operation string, status int, body []byte) *SinkError {
	msg := strings.TrimSpace(string(body))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return NewSinkError(s.classifier.ClassifyStatus(status), sinkElasticsearch, operation, status, msg, nil)
}

// retryable marks non-retryable sink errors as permanent for retry.Do
func (s *ElasticsearchSink) retryable(err error) error {
	var se *SinkError
	if errors.As(err, &se) && !se.Retryable {
		return retry.Permanent(err)
	}
	return err
}

var _ Sink = (*ElasticsearchSink)(nil)
