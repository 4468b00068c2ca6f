package traces

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/edgeops/opsctl/pkg/defaults"
	"github.com/edgeops/opsctl/pkg/opsservice"
	tracepb "go.opentelemetry.io/proto/otlp/trace/v1"
	"google.golang.org/protobuf/proto"
	"k8s.io/client-go/rest"
)

// DefaultMaxBytes caps one trace export response.
const DefaultMaxBytes int64 = 64 << 20

// ProxySource reaches the diagnostics service through the API server's
// service proxy, so no port-forward is needed.
type ProxySource struct {
	Client   *http.Client
	Host     string
	MaxBytes int64
}

// NewProxySource builds a ProxySource from the cluster's rest.Config.
func NewProxySource(cfg *rest.Config) (*ProxySource, error) {
	hc, err := rest.HTTPClientFor(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create trace http client: %w", err)
	}
	return &ProxySource{Client: hc, Host: cfg.Host}, nil
}

// URL returns the service proxy URL for ep in namespace.
func (p *ProxySource) URL(namespace string, ep opsservice.TraceEndpoint, since time.Time) string {
	svc := ep.Service + ":" + ep.Port
	if ep.Scheme != "" {
		svc = ep.Scheme + ":" + svc
	}
	path := ep.Path
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	q := url.Values{}
	q.Set("since", strconv.FormatInt(since.Unix(), 10))

	return fmt.Sprintf("%s/api/v1/namespaces/%s/services/%s/proxy%s?%s",
		strings.TrimSuffix(p.Host, "/"), namespace, svc, path, q.Encode())
}

// Fetch implements Source.
func (p *ProxySource) Fetch(ctx context.Context, namespace string, ep opsservice.TraceEndpoint, since time.Time) (*tracepb.TracesData, error) {
	ctx, cancel := context.WithTimeout(ctx, defaults.TraceFetchTimeout)
	defer cancel()

	u := p.URL(namespace, ep, since)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create trace request: %w", err)
	}
	req.Header.Set("Accept", "application/x-protobuf")

	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach trace endpoint %s: %w", ep.Service, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("trace endpoint %s returned %s", ep.Service, resp.Status)
	}

	maxBytes := p.MaxBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read traces from %s: %w", ep.Service, err)
	}

	td := &tracepb.TracesData{}
	if err := proto.Unmarshal(body, td); err != nil {
		return nil, fmt.Errorf("failed to decode traces from %s: %w", ep.Service, err)
	}

	slog.Debug("fetched traces",
		slog.String("service", ep.Service),
		slog.Int("bytes", len(body)),
		slog.Int("resourceSpans", len(td.GetResourceSpans())))
	return td, nil
}
