package collector

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/edgeops/opsctl/pkg/collector/traces"
	"github.com/edgeops/opsctl/pkg/discovery"
	"github.com/edgeops/opsctl/pkg/k8s/fakecluster"
	"github.com/edgeops/opsctl/pkg/opsservice"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tracepb "go.opentelemetry.io/proto/otlp/trace/v1"
)

const testNS = "azure-iot-operations"

var testNow = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

type fakeLogs struct {
	mu    sync.Mutex
	fail  map[string]bool
	calls []LogRequest
}

func (f *fakeLogs) ReadLogs(_ context.Context, req LogRequest) ([]byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.mu.Unlock()

	if f.fail[req.Pod] {
		return nil, errors.New("container not found")
	}
	old := req.Since.Add(-time.Second).Format(time.RFC3339Nano)
	fresh := req.Since.Format(time.RFC3339Nano)
	return []byte(fmt.Sprintf("%s stale entry\n%s fresh entry\n", old, fresh)), nil
}

type fakeTraces struct {
	data *tracepb.TracesData
	err  error
}

func (f *fakeTraces) Fetch(context.Context, string, opsservice.TraceEndpoint, time.Time) (*tracepb.TracesData, error) {
	return f.data, f.err
}

func catalog(t *testing.T) *opsservice.Catalog {
	t.Helper()
	cat, err := opsservice.Default()
	require.NoError(t, err)
	return cat
}

func spec(t *testing.T, st opsservice.Type) opsservice.Service {
	t.Helper()
	svc, ok := catalog(t).Get(st)
	require.True(t, ok)
	return svc
}

func request(traces bool) Request {
	return Request{Namespace: testNS, Now: testNow, LogAge: 24 * time.Hour, IncludeTraces: traces}
}

func paths(files []File) []string {
	out := make([]string, 0, len(files))
	for _, f := range files {
		out = append(out, f.Path())
	}
	sort.Strings(out)
	return out
}

func brokerCluster(t *testing.T) *fakecluster.Cluster {
	broker := spec(t, opsservice.TypeBroker)
	return fakecluster.New(
		fakecluster.WithServices(catalog(t), opsservice.TypeBroker),
		fakecluster.WithCustomResources(fakecluster.CustomResource(broker.APIs[0], "Broker", testNS, "default")),
		fakecluster.WithObjects(
			fakecluster.Pod(testNS, "aio-broker-frontend-0", 1, "broker"),
			fakecluster.Pod(testNS, "aio-broker-backend-0", 0, "broker"),
		),
	)
}

func TestServiceCollector_Broker(t *testing.T) {
	c := brokerCluster(t)
	logs := &fakeLogs{fail: map[string]bool{"aio-broker-backend-0": true}}
	rep := NewReporter(nil)

	col := &ServiceCollector{
		Spec:       spec(t, opsservice.TypeBroker),
		Discoverer: discovery.New(c.Kube, c.Dynamic, c.Discovery),
		Logs:       logs,
		Reporter:   rep,
	}
	assert.Equal(t, opsservice.TypeBroker, col.Service())

	res, err := col.Collect(context.Background(), request(false))
	require.NoError(t, err)

	assert.Equal(t, []string{
		testNS + "/broker/broker.default.yaml",
		testNS + "/broker/pod.aio-broker-backend-0.yaml",
		testNS + "/broker/pod.aio-broker-frontend-0.broker.log",
		testNS + "/broker/pod.aio-broker-frontend-0.broker.previous.log",
		testNS + "/broker/pod.aio-broker-frontend-0.yaml",
	}, paths(res.Files))
	assert.Empty(t, res.Dirs)

	warnings := rep.Warnings(opsservice.TypeBroker)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "container not found")

	for _, f := range res.Files {
		if strings.HasSuffix(f.Name, ".log") {
			assert.NotContains(t, string(f.Data), "stale entry")
			assert.Contains(t, string(f.Data), "fresh entry")
		}
	}
}

func TestServiceCollector_Traces(t *testing.T) {
	span := &tracepb.Span{
		TraceId:           []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16},
		SpanId:            []byte{1, 2, 3, 4, 5, 6, 7, 8},
		Name:              "publish",
		StartTimeUnixNano: uint64(testNow.Add(-time.Minute).UnixNano()),
	}
	data := &tracepb.TracesData{ResourceSpans: []*tracepb.ResourceSpans{{
		ScopeSpans: []*tracepb.ScopeSpans{{Spans: []*tracepb.Span{span}}},
	}}}

	tests := []struct {
		name      string
		source    traces.Source
		include   bool
		wantDir   bool
		wantFiles int
		wantWarn  bool
	}{
		{name: "traces in window", source: &fakeTraces{data: data}, include: true, wantDir: true, wantFiles: 2},
		{name: "no traces in window", source: &fakeTraces{data: &tracepb.TracesData{}}, include: true, wantDir: true},
		{name: "endpoint unreachable", source: &fakeTraces{err: errors.New("dial tcp: connection refused")}, include: true, wantWarn: true},
		{name: "traces not requested", source: &fakeTraces{data: data}, include: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := brokerCluster(t)
			rep := NewReporter(nil)
			col := &ServiceCollector{
				Spec:       spec(t, opsservice.TypeBroker),
				Discoverer: discovery.New(c.Kube, c.Dynamic, c.Discovery),
				Logs:       &fakeLogs{},
				Traces:     tt.source,
				Reporter:   rep,
			}

			res, err := col.Collect(context.Background(), request(tt.include))
			require.NoError(t, err)

			if tt.wantDir {
				assert.Equal(t, []string{testNS + "/broker/traces"}, res.Dirs)
			} else {
				assert.Empty(t, res.Dirs)
			}

			var traceFiles []string
			for _, f := range res.Files {
				if f.Subfolder == traces.Subfolder {
					traceFiles = append(traceFiles, f.Name)
				}
			}
			assert.Len(t, traceFiles, tt.wantFiles)
			assert.Equal(t, tt.wantWarn, len(rep.Warnings(opsservice.TypeBroker)) > 0)
		})
	}
}

func TestServiceCollector_TracesOnlyForServicesWithEndpoint(t *testing.T) {
	c := fakecluster.New(fakecluster.WithObjects(fakecluster.Pod(testNS, "aio-otel-collector-0", 0, "otel")))
	col := &ServiceCollector{
		Spec:       spec(t, opsservice.TypeOtel),
		Discoverer: discovery.New(c.Kube, c.Dynamic, c.Discovery),
		Logs:       &fakeLogs{},
		Traces:     &fakeTraces{data: &tracepb.TracesData{}},
	}
	res, err := col.Collect(context.Background(), request(true))
	require.NoError(t, err)
	assert.Empty(t, res.Dirs)
	assert.NotEmpty(t, res.Files)
}

func TestServiceCollector_NoResources(t *testing.T) {
	c := fakecluster.New(fakecluster.WithServices(catalog(t), opsservice.TypeDeviceRegistry))
	col := &ServiceCollector{
		Spec:       spec(t, opsservice.TypeDeviceRegistry),
		Discoverer: discovery.New(c.Kube, c.Dynamic, c.Discovery),
		Logs:       &fakeLogs{},
	}
	res, err := col.Collect(context.Background(), request(true))
	require.NoError(t, err)
	assert.Empty(t, res.Files)
	assert.Empty(t, res.Dirs)
}

func TestServiceCollector_NoTracesWithoutBroker(t *testing.T) {
	span := &tracepb.Span{
		TraceId: []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16},
		SpanId:  []byte{1, 2, 3, 4, 5, 6, 7, 8},
		Name:    "publish",
	}
	src := &fakeTraces{data: &tracepb.TracesData{ResourceSpans: []*tracepb.ResourceSpans{{
		ScopeSpans: []*tracepb.ScopeSpans{{Spans: []*tracepb.Span{span}}},
	}}}}

	c := fakecluster.New(fakecluster.WithServices(catalog(t), opsservice.TypeBroker))
	col := &ServiceCollector{
		Spec:       spec(t, opsservice.TypeBroker),
		Discoverer: discovery.New(c.Kube, c.Dynamic, c.Discovery),
		Logs:       &fakeLogs{},
		Traces:     src,
	}
	res, err := col.Collect(context.Background(), request(true))
	require.NoError(t, err)
	assert.Empty(t, res.Files)
	assert.Empty(t, res.Dirs)
}

func TestServiceCollector_ExtraNamespaces(t *testing.T) {
	c := fakecluster.New(
		fakecluster.WithServices(catalog(t), opsservice.TypeBilling),
		fakecluster.WithObjects(
			fakecluster.Pod(testNS, "aio-usage-28491-abc", 0, "usage"),
			fakecluster.Pod("azure-arc", "billing-operator-0", 0, "manager"),
			fakecluster.Pod("azure-arc", "clusterconnect-agent-0", 0, "agent"),
		),
	)
	col := &ServiceCollector{
		Spec:       spec(t, opsservice.TypeBilling),
		Discoverer: discovery.New(c.Kube, c.Dynamic, c.Discovery),
		Logs:       &fakeLogs{},
	}
	res, err := col.Collect(context.Background(), request(false))
	require.NoError(t, err)

	assert.Equal(t, []string{
		"azure-arc/billing/pod.billing-operator-0.manager.log",
		"azure-arc/billing/pod.billing-operator-0.yaml",
		testNS + "/billing/pod.aio-usage-28491-abc.usage.log",
		testNS + "/billing/pod.aio-usage-28491-abc.yaml",
	}, paths(res.Files))
}

func TestServiceCollector_MetaImages(t *testing.T) {
	c := fakecluster.New(fakecluster.WithObjects(
		fakecluster.Pod(testNS, "aio-broker-frontend-0", 0, "broker"),
		fakecluster.Pod(testNS, "aio-operator-0", 0, "operator"),
	))
	f := &DefaultFactory{
		Discoverer: discovery.New(c.Kube, c.Dynamic, c.Discovery),
		Logs:       &fakeLogs{},
	}

	col := f.CreateCollector(spec(t, opsservice.TypeMeta))
	res, err := col.Collect(context.Background(), request(false))
	require.NoError(t, err)

	var images *File
	for i := range res.Files {
		if res.Files[i].Name == "images.yaml" {
			images = &res.Files[i]
		}
	}
	require.NotNil(t, images)
	assert.Equal(t, testNS+"/meta/images.yaml", images.Path())
	assert.Contains(t, string(images.Data), "aio-broker-frontend-0:broker")
}

func TestServiceCollector_CancelledContext(t *testing.T) {
	c := brokerCluster(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	col := &ServiceCollector{
		Spec:       spec(t, opsservice.TypeBroker),
		Discoverer: discovery.New(c.Kube, c.Dynamic, c.Discovery),
		Logs:       &fakeLogs{},
	}
	_, err := col.Collect(ctx, request(false))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDefaultFactory(t *testing.T) {
	f := &DefaultFactory{}
	col, ok := f.CreateCollector(spec(t, opsservice.TypeBroker)).(*ServiceCollector)
	require.True(t, ok)
	assert.False(t, col.Images)
	assert.Equal(t, opsservice.TypeBroker, col.Service())
}
