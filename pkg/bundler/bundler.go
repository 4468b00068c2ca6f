// Package bundler assembles diagnostic support bundles.
//
// A run resolves the requested scope against the live cluster, dispatches
// one collector per ops service on a bounded worker pool, merges their files
// into a Layout and writes the zip archive. Per-service failures are recorded
// in the Output and in meta/bundle.yaml; they never abort sibling services.
package bundler

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"path/filepath"
	"sync"
	"time"

	"github.com/edgeops/opsctl/pkg/bundler/config"
	"github.com/edgeops/opsctl/pkg/bundler/result"
	"github.com/edgeops/opsctl/pkg/collector"
	"github.com/edgeops/opsctl/pkg/collector/traces"
	"github.com/edgeops/opsctl/pkg/discovery"
	cerrors "github.com/edgeops/opsctl/pkg/errors"
	"github.com/edgeops/opsctl/pkg/k8s/client"
	"github.com/edgeops/opsctl/pkg/opsservice"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
	"k8s.io/apimachinery/pkg/version"
)

const tracerName = "github.com/edgeops/opsctl/pkg/bundler"

// Bundler creates support bundles.
type Bundler interface {
	Make(ctx context.Context) (*result.Output, error)
}

// DefaultBundler is the Bundler used by the CLI and the HTTP handler.
type DefaultBundler struct {
	opts []Option

	cfg      *config.Config
	catalog  *opsservice.Catalog
	clients  *client.Clients
	logs     collector.LogReader
	traces   traces.Source
	factory  collector.Factory
	reporter *collector.Reporter
	tracer   trace.Tracer
	now      func() time.Time
}

// Option configures a DefaultBundler.
type Option func(*DefaultBundler)

// WithConfig sets the bundle request.
func WithConfig(cfg *config.Config) Option {
	return func(b *DefaultBundler) { b.cfg = cfg }
}

// WithCatalog sets the service catalog instead of loading it from the config.
func WithCatalog(cat *opsservice.Catalog) Option {
	return func(b *DefaultBundler) { b.catalog = cat }
}

// WithClients sets the cluster clients instead of building them from the config.
func WithClients(c *client.Clients) Option {
	return func(b *DefaultBundler) { b.clients = c }
}

// WithLogReader replaces the pods/log reader.
func WithLogReader(r collector.LogReader) Option {
	return func(b *DefaultBundler) { b.logs = r }
}

// WithTraceSource replaces the service-proxy trace source.
func WithTraceSource(s traces.Source) Option {
	return func(b *DefaultBundler) { b.traces = s }
}

// WithFactory replaces the collector factory.
func WithFactory(f collector.Factory) Option {
	return func(b *DefaultBundler) { b.factory = f }
}

// WithReporter sets the warning sink.
func WithReporter(r *collector.Reporter) Option {
	return func(b *DefaultBundler) { b.reporter = r }
}

// WithTracerProvider sets the provider run spans are recorded with.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(b *DefaultBundler) {
		if tp != nil {
			b.tracer = tp.Tracer(tracerName)
		}
	}
}

// WithClock sets the collection time source.
func WithClock(now func() time.Time) Option {
	return func(b *DefaultBundler) {
		if now != nil {
			b.now = now
		}
	}
}

// New creates a DefaultBundler.
func New(opts ...Option) *DefaultBundler {
	b := &DefaultBundler{
		opts:   opts,
		cfg:    config.NewConfig(),
		tracer: otel.Tracer(tracerName),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// run is the state of one Make call.
type run struct {
	cfg       *config.Config
	catalog   *opsservice.Catalog
	clients   *client.Clients
	disc      *discovery.Discoverer
	reporter  *collector.Reporter
	registry  *Registry
	namespace string
	server    *version.Info
	now       time.Time
	layout    *Layout
	// deployed lists the concrete services found deployed; auto scope only.
	deployed  []opsservice.Type
}

// Make collects the configured scope and writes the archive.
//
// The archive is written whenever the cluster was reachable, including after
// cancellation, in which case the context error is returned with the Output.
func (b *DefaultBundler) Make(ctx context.Context) (*result.Output, error) {
	started := time.Now()
	cfg := b.cfg

	ctx, span := b.tracer.Start(ctx, "bundle.make", trace.WithAttributes(
		attribute.String("opsctl.ops_service", cfg.OpsService().String()),
		attribute.Int64("opsctl.log_age_seconds", cfg.LogAgeSeconds()),
		attribute.Bool("opsctl.include_traces", cfg.IncludeTraces()),
	))
	defer span.End()

	out, err := b.make(ctx, cfg)
	bundleDuration.Observe(time.Since(started).Seconds())
	switch {
	case err != nil:
		bundleTotal.WithLabelValues("error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	case out.HasErrors():
		bundleTotal.WithLabelValues("partial").Inc()
	default:
		bundleTotal.WithLabelValues("success").Inc()
	}
	if out != nil {
		out.TotalDuration = time.Since(started)
		span.SetAttributes(
			attribute.String("opsctl.archive", out.ArchivePath),
			attribute.Int("opsctl.files", out.TotalFiles),
		)
	}
	return out, err
}

func (b *DefaultBundler) make(ctx context.Context, cfg *config.Config) (*result.Output, error) {
	if err := cfg.Validate(); err != nil {
		return nil, cerrors.Wrap(cerrors.ErrCodeInvalidRequest, "invalid bundle request", err)
	}

	r, err := b.prepare(ctx, cfg)
	if err != nil {
		return nil, err
	}

	services, err := b.resolveScope(ctx, r)
	if err != nil {
		return nil, err
	}

	slog.Info("collecting support bundle",
		slog.String("namespace", r.namespace),
		slog.String("scope", cfg.OpsService().String()),
		slog.Any("services", services))

	out := &result.Output{
		RunID:     uuid.NewString(),
		Namespace: r.namespace,
		Scope:     cfg.OpsService(),
	}
	out.Results = b.dispatch(ctx, r, services)
	for _, res := range out.Results {
		res.AddWarnings(r.reporter.Warnings(res.Service)...)
		if !res.Success && len(res.Errors) > 0 {
			out.Errors = append(out.Errors, result.ServiceError{Service: res.Service, Error: res.Errors[0]})
		}
	}

	for _, t := range services {
		if svc, ok := r.catalog.Get(t); ok && svc.AlwaysPresent {
			r.layout.AddDir(path.Join(r.namespace, string(t)))
		}
	}

	if err := b.writeMeta(r, services, out); err != nil {
		return nil, err
	}

	dir, err := cfg.ResolvedBundleDir()
	if err != nil {
		return nil, cerrors.Wrap(cerrors.ErrCodeArchiveIO, "failed to resolve bundle dir", err)
	}
	dest := filepath.Join(dir, ArchiveName(r.now))
	size, err := writeArchive(r.layout, dest, r.now)
	if err != nil {
		return nil, cerrors.WrapWithContext(cerrors.ErrCodeArchiveIO,
			fmt.Sprintf("failed to write bundle %s", dest), err, map[string]any{"path": dest})
	}

	out.ArchivePath = dest
	out.ArchiveSize = size
	out.TotalFiles = r.layout.Len()
	out.TotalSize = r.layout.Size()

	slog.Info("support bundle written",
		slog.String("path", dest),
		slog.Int("files", out.TotalFiles),
		slog.Int("failed_services", out.FailureCount()))

	if err := ctx.Err(); err != nil {
		return out, err
	}
	if !out.HasContent() && out.HasErrors() {
		return out, cerrors.New(cerrors.ErrCodeCollectionFailed,
			fmt.Sprintf("no service produced content, %d failed; partial bundle at %s", out.FailureCount(), dest))
	}
	return out, nil
}

// prepare loads the catalog, connects to the cluster and detects the namespace.
func (b *DefaultBundler) prepare(ctx context.Context, cfg *config.Config) (*run, error) {
	cat := b.catalog
	if cat == nil {
		var err error
		if cat, err = opsservice.Load(cfg.CatalogPath()); err != nil {
			return nil, cerrors.Wrap(cerrors.ErrCodeInvalidRequest, "failed to load service catalog", err)
		}
	}

	clients := b.clients
	if clients == nil {
		var err error
		if clients, err = client.Build(cfg.Kubeconfig(), cfg.KubeContext()); err != nil {
			return nil, cerrors.Wrap(cerrors.ErrCodeNoClusterContext, "no usable cluster context", err)
		}
	}

	limiter := rate.NewLimiter(rate.Limit(cfg.QPS()), cfg.Burst())
	disc := discovery.New(clients.Kube, clients.Dynamic, clients.Discovery, discovery.WithLimiter(limiter))

	info, err := disc.ServerVersion(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, cerrors.Wrap(cerrors.ErrCodeNoClusterContext, "cluster is not reachable", err)
	}

	namespace := cfg.Namespace()
	if namespace == "" {
		if namespace, err = disc.DetectNamespace(ctx, cat); err != nil {
			return nil, err
		}
	}

	reporter := b.reporter
	if reporter == nil {
		reporter = collector.NewReporter(nil)
	}

	r := &run{
		cfg:       cfg,
		catalog:   cat,
		clients:   clients,
		disc:      disc,
		reporter:  reporter,
		namespace: namespace,
		server:    info,
		now:       b.now(),
		layout:    NewLayout(),
	}
	r.registry = NewRegistry(cat, b.collectorFactory(r, limiter))

	slog.Debug("connected to cluster",
		slog.String("host", clients.Config.Host),
		slog.String("version", info.GitVersion))
	return r, nil
}

func (b *DefaultBundler) collectorFactory(r *run, limiter *rate.Limiter) collector.Factory {
	if b.factory != nil {
		return b.factory
	}

	logs := b.logs
	if logs == nil {
		logs = &collector.KubeLogReader{Client: r.clients.Kube, Limiter: limiter}
	}

	src := b.traces
	if src == nil && r.cfg.IncludeTraces() {
		ps, err := traces.NewProxySource(r.clients.Config)
		if err != nil {
			r.reporter.Warn(opsservice.TypeBroker, "trace source unavailable", err)
		} else {
			src = ps
		}
	}

	return &collector.DefaultFactory{
		Discoverer:     r.disc,
		Logs:           logs,
		Traces:         src,
		Reporter:       r.reporter,
		LogConcurrency: r.cfg.LogConcurrency(),
	}
}

// resolveScope expands the requested service. Auto becomes every concrete
// catalog service plus otel; meta is always appended. Auto never filters on
// deployment state: a service whose collector finds nothing leaves no folder,
// so auto always covers what any single-service run would collect. The
// deployment state is probed only to record it in bundle.yaml.
func (b *DefaultBundler) resolveScope(ctx context.Context, r *run) ([]opsservice.Type, error) {
	scope := r.cfg.OpsService()
	if scope != opsservice.TypeAuto {
		return []opsservice.Type{scope, opsservice.TypeMeta}, nil
	}

	var services []opsservice.Type
	for _, t := range opsservice.Concrete() {
		svc, ok := r.catalog.Get(t)
		if !ok {
			continue
		}
		services = append(services, t)

		a, warns, err := r.disc.Availability(ctx, svc, r.namespace)
		if err != nil {
			return nil, err
		}
		for _, w := range warns {
			r.reporter.Warn(opsservice.TypeMeta, fmt.Sprintf("availability check for %s failed on %s", t, w.Kind), w.Err)
		}
		if a.Deployed(svc) {
			r.deployed = append(r.deployed, t)
		}
	}
	return append(services, opsservice.TypeOtel, opsservice.TypeMeta), nil
}

// dispatch runs one collector per service on a bounded pool. Results are
// returned in services order. Dispatch stops when ctx is cancelled; files
// already collected are still merged.
func (b *DefaultBundler) dispatch(ctx context.Context, r *run, services []opsservice.Type) []*result.Result {
	req := collector.Request{
		Namespace:     r.namespace,
		Now:           r.now,
		LogAge:        r.cfg.LogAge(),
		IncludeTraces: r.cfg.IncludeTraces(),
	}

	results := make([]*result.Result, len(services))
	var mu sync.Mutex

	g := new(errgroup.Group)
	g.SetLimit(r.cfg.Workers())

	for i, t := range services {
		results[i] = result.NewResult(t)
		if ctx.Err() != nil {
			results[i].AddError(fmt.Errorf("not collected: %w", ctx.Err()))
			continue
		}
		g.Go(func() error {
			res := b.safeCollect(ctx, r, t, req)
			mu.Lock()
			results[i] = res
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// safeCollect runs collectService and turns a collector panic into a failed
// result for that service only.
func (b *DefaultBundler) safeCollect(ctx context.Context, r *run, t opsservice.Type, req collector.Request) (res *result.Result) {
	defer func() {
		if p := recover(); p != nil {
			res = result.NewResult(t)
			res.AddError(fmt.Errorf("collector panicked: %v", p))
			serviceDuration.WithLabelValues(t.String(), "panic").Observe(0)
			r.reporter.Logger().Error("collector panicked",
				slog.String("service", t.String()),
				slog.Any("panic", p))
		}
	}()
	return b.collectService(ctx, r, t, req)
}

func (b *DefaultBundler) collectService(ctx context.Context, r *run, t opsservice.Type, req collector.Request) *result.Result {
	started := time.Now()
	res := result.NewResult(t)

	ctx, span := b.tracer.Start(ctx, "bundle.collect", trace.WithAttributes(
		attribute.String("opsctl.service", t.String()),
	))
	defer span.End()

	c, ok := r.registry.Get(t)
	if !ok {
		res.AddError(fmt.Errorf("no collector registered for %s", t))
		span.SetStatus(codes.Error, "no collector")
		serviceDuration.WithLabelValues(t.String(), "error").Observe(time.Since(started).Seconds())
		return res
	}

	collected, err := c.Collect(ctx, req)
	if collected != nil {
		for _, f := range collected.Files {
			p := r.layout.Add(f)
			res.AddFile(p, int64(len(f.Data)))
		}
		for _, d := range collected.Dirs {
			r.layout.AddDir(d)
		}
		bundleFiles.WithLabelValues(t.String()).Add(float64(len(collected.Files)))
	}
	res.Duration = time.Since(started)

	status := "success"
	if err != nil {
		status = "error"
		res.AddError(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.reporter.Logger().Error("service collection failed",
			slog.String("service", t.String()),
			slog.String("error", err.Error()))
	} else {
		res.MarkSuccess()
	}
	span.SetAttributes(attribute.Int("opsctl.files", len(res.Files)))
	serviceDuration.WithLabelValues(t.String(), status).Observe(res.Duration.Seconds())

	slog.Debug("service collected",
		slog.String("service", t.String()),
		slog.Int("files", len(res.Files)),
		slog.Duration("duration", res.Duration))
	return res
}

func (b *DefaultBundler) writeMeta(r *run, services []opsservice.Type, out *result.Output) error {
	m := newMeta(r.now)
	m.RunID = out.RunID
	m.Namespace = r.namespace
	m.RequestedScope = r.cfg.OpsService()
	m.ResolvedServices = services
	m.DeployedServices = r.deployed
	m.LogAgeSeconds = r.cfg.LogAgeSeconds()
	m.IncludeTraces = r.cfg.IncludeTraces()
	m.Tool = ToolInfo{Name: r.cfg.ToolName(), Version: r.cfg.ToolVersion()}
	m.Cluster.Host = r.clients.Config.Host
	if r.server != nil {
		m.Cluster.ServerVersion = r.server.GitVersion
		m.Cluster.Platform = r.server.Platform
	}
	m.addResults(out.Results)

	data, err := m.marshal()
	if err != nil {
		return err
	}
	p := r.layout.Add(collector.File{
		Namespace: r.namespace,
		Service:   opsservice.TypeMeta,
		Name:      MetaFileName,
		Data:      data,
	})
	slog.Debug("wrote bundle metadata", slog.String("path", p))
	return nil
}
