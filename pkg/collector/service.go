package collector

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/edgeops/opsctl/pkg/collector/traces"
	"github.com/edgeops/opsctl/pkg/discovery"
	"github.com/edgeops/opsctl/pkg/opsservice"
	"golang.org/x/sync/errgroup"
)

// DefaultLogConcurrency bounds concurrent log streams within one service.
const DefaultLogConcurrency = 4

// ServiceCollector collects manifests, container logs and, when configured,
// traces and the image inventory for one catalog service.
type ServiceCollector struct {
	Spec       opsservice.Service
	Discoverer *discovery.Discoverer
	Logs       LogReader
	Traces     traces.Source
	Reporter   *Reporter

	// Images adds images.yaml for every pod in the platform namespace.
	Images bool
	// LogConcurrency bounds concurrent log streams. Zero means DefaultLogConcurrency.
	LogConcurrency int
}

// Service implements Collector.
func (c *ServiceCollector) Service() opsservice.Type {
	return c.Spec.Name
}

// Collect implements Collector. The only errors returned are context
// cancellation and a missing discoverer; everything else becomes a warning.
func (c *ServiceCollector) Collect(ctx context.Context, req Request) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.Discoverer == nil {
		return nil, fmt.Errorf("collector %s has no discoverer", c.Spec.Name)
	}
	if c.Reporter == nil {
		c.Reporter = NewReporter(nil)
	}

	res := &Result{Service: c.Spec.Name}

	disc, err := c.Discoverer.Discover(ctx, c.Spec, req.Namespace)
	if err != nil {
		return nil, err
	}
	c.reportDiscovery(disc.Warnings)

	files, err := c.collectResources(ctx, req, req.Namespace, disc.Resources)
	if err != nil {
		return nil, err
	}
	res.Files = append(res.Files, files...)

	for _, extra := range c.Spec.ExtraNamespaces {
		wls, warns, err := c.Discoverer.Workloads(ctx, extra.Namespace, extra.Workloads)
		if err != nil {
			return nil, err
		}
		c.reportDiscovery(warns)
		files, err := c.collectResources(ctx, req, extra.Namespace, wls)
		if err != nil {
			return nil, err
		}
		res.Files = append(res.Files, files...)
	}

	// A service with no live resources in its namespace gets no traces
	// folder either.
	if req.IncludeTraces && c.Spec.Traces != nil && len(disc.Resources) > 0 {
		c.collectTraces(ctx, req, res)
	}

	if c.Images {
		if f, ok := c.collectImages(ctx, req); ok {
			res.Files = append(res.Files, f)
		}
	}

	if err := ctx.Err(); err != nil {
		return res, err
	}

	slog.Debug("service collected",
		slog.String("service", c.Spec.Name.String()),
		slog.Int("files", len(res.Files)))
	return res, nil
}

func (c *ServiceCollector) reportDiscovery(warns []discovery.Warning) {
	for _, w := range warns {
		c.Reporter.Warn(c.Spec.Name, "discovery failed for "+w.Kind, w.Err,
			slog.String("namespace", w.Namespace))
	}
}

// collectResources writes one manifest per resource and the logs of every pod.
func (c *ServiceCollector) collectResources(ctx context.Context, req Request, namespace string, resources []discovery.Resource) ([]File, error) {
	var files []File
	var pods []discovery.Resource

	for _, r := range resources {
		data, err := Manifest(r)
		if err != nil {
			c.Reporter.Warn(c.Spec.Name, "failed to render manifest", err,
				slog.String("kind", r.Kind), slog.String("name", r.Name))
			continue
		}
		files = append(files, c.file(namespace, "", manifestFileName(r), data))
		if _, ok := r.Pod(); ok {
			pods = append(pods, r)
		}
	}

	logs, err := c.collectLogs(ctx, req, namespace, pods)
	if err != nil {
		return nil, err
	}
	return append(files, logs...), nil
}

// collectLogs fetches container logs concurrently. A failed stream is
// reported and omitted; siblings continue.
func (c *ServiceCollector) collectLogs(ctx context.Context, req Request, namespace string, pods []discovery.Resource) ([]File, error) {
	if c.Logs == nil || len(pods) == 0 {
		return nil, nil
	}

	limit := c.LogConcurrency
	if limit <= 0 {
		limit = DefaultLogConcurrency
	}

	var (
		mu    sync.Mutex
		files []File
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for _, r := range pods {
		pod, _ := r.Pod()
		for _, lr := range podLogRequests(pod, req) {
			if gctx.Err() != nil {
				break
			}
			g.Go(func() error {
				data, err := c.Logs.ReadLogs(gctx, lr)
				if err != nil {
					if gctx.Err() != nil {
						return gctx.Err()
					}
					c.Reporter.Warn(c.Spec.Name, "failed to read container logs", err,
						slog.String("pod", lr.Pod),
						slog.String("container", lr.Container),
						slog.Bool("previous", lr.Previous))
					return nil
				}
				f := c.file(namespace, "", logFileName(lr.Pod, lr.Container, lr.Previous), FilterLogSince(data, lr.Since))
				mu.Lock()
				files = append(files, f)
				mu.Unlock()
				return nil
			})
		}
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return files, nil
}

func (c *ServiceCollector) collectTraces(ctx context.Context, req Request, res *Result) {
	if c.Traces == nil {
		c.Reporter.Warn(c.Spec.Name, "trace collection requested but no trace source is configured", nil)
		return
	}

	data, err := c.Traces.Fetch(ctx, req.Namespace, *c.Spec.Traces, req.Since())
	if err != nil {
		c.Reporter.Warn(c.Spec.Name, "trace endpoint unavailable, traces omitted", err,
			slog.String("endpoint", c.Spec.Traces.Service))
		return
	}

	res.Dirs = append(res.Dirs, File{Namespace: req.Namespace, Service: c.Spec.Name, Subfolder: traces.Subfolder}.Dir())
	for _, tr := range traces.Group(data, req.Since()) {
		pb, err := tr.OTLP()
		if err != nil {
			c.Reporter.Warn(c.Spec.Name, "failed to encode trace", err, slog.String("trace", tr.ID))
			continue
		}
		res.Files = append(res.Files, c.file(req.Namespace, traces.Subfolder, tr.OTLPFileName(), pb))

		js, err := tr.TempoJSON()
		if err != nil {
			c.Reporter.Warn(c.Spec.Name, "failed to encode trace", err, slog.String("trace", tr.ID))
			continue
		}
		res.Files = append(res.Files, c.file(req.Namespace, traces.Subfolder, tr.TempoFileName(), js))
	}
}

func (c *ServiceCollector) collectImages(ctx context.Context, req Request) (File, bool) {
	pods, err := c.Discoverer.Pods(ctx, req.Namespace)
	if err != nil {
		c.Reporter.Warn(c.Spec.Name, "failed to list pods for image inventory", err)
		return File{}, false
	}
	inv, err := CollectImages(ctx, pods, req.Now)
	if err != nil {
		c.Reporter.Warn(c.Spec.Name, "failed to build image inventory", err)
		return File{}, false
	}
	data, err := inv.Marshal()
	if err != nil {
		c.Reporter.Warn(c.Spec.Name, "failed to build image inventory", err)
		return File{}, false
	}
	return c.file(req.Namespace, "", "images.yaml", data), true
}

func (c *ServiceCollector) file(namespace, subfolder, name string, data []byte) File {
	return File{
		Namespace: namespace,
		Service:   c.Spec.Name,
		Subfolder: subfolder,
		Name:      name,
		Data:      data,
	}
}
