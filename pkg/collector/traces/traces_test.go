package traces

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/edgeops/opsctl/pkg/opsservice"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	commonpb "go.opentelemetry.io/proto/otlp/common/v1"
	resourcepb "go.opentelemetry.io/proto/otlp/resource/v1"
	tracepb "go.opentelemetry.io/proto/otlp/trace/v1"
	"google.golang.org/protobuf/proto"
)

var (
	traceA = []byte{0xaa, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15}
	traceB = []byte{0xbb, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15}
)

func span(trace []byte, name string, start time.Time) *tracepb.Span {
	return &tracepb.Span{
		TraceId:           trace,
		SpanId:            []byte{1, 2, 3, 4, 5, 6, 7, 8},
		Name:              name,
		StartTimeUnixNano: uint64(start.UnixNano()),
		EndTimeUnixNano:   uint64(start.Add(time.Millisecond).UnixNano()),
	}
}

func testData(now time.Time) *tracepb.TracesData {
	return &tracepb.TracesData{
		ResourceSpans: []*tracepb.ResourceSpans{
			{
				Resource: &resourcepb.Resource{Attributes: []*commonpb.KeyValue{{
					Key:   "service.name",
					Value: &commonpb.AnyValue{Value: &commonpb.AnyValue_StringValue{StringValue: "aio-broker-frontend"}},
				}}},
				ScopeSpans: []*tracepb.ScopeSpans{{
					Scope: &commonpb.InstrumentationScope{Name: "broker"},
					Spans: []*tracepb.Span{
						span(traceA, "publish", now.Add(-time.Minute)),
						span(traceB, "old", now.Add(-2*time.Hour)),
						span(traceA, "deliver", now.Add(-time.Hour)),
					},
				}},
			},
		},
	}
}

func TestGroup(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	got := Group(testData(now), now.Add(-time.Hour))
	require.Len(t, got, 1, "trace B is older than the cutoff")
	assert.Equal(t, "aa0102030405060708090a0b0c0d0e0f", got[0].ID)
	assert.Equal(t, 2, got[0].Spans, "cutoff is inclusive")

	rs := got[0].Data.GetResourceSpans()
	require.Len(t, rs, 1)
	assert.Equal(t, "broker", rs[0].GetScopeSpans()[0].GetScope().GetName())

	all := Group(testData(now), time.Time{})
	require.Len(t, all, 2)
	assert.Equal(t, "aa0102030405060708090a0b0c0d0e0f", all[0].ID)
	assert.Equal(t, "bb0102030405060708090a0b0c0d0e0f", all[1].ID)

	assert.Empty(t, Group(nil, now))
	assert.Empty(t, Group(testData(now), now.Add(time.Second)))
}

func TestTrace_Encodings(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	tr := Group(testData(now), time.Time{})[0]

	assert.Equal(t, tr.ID+".otlp.pb", tr.OTLPFileName())
	assert.Equal(t, tr.ID+".tempo.json", tr.TempoFileName())

	pb, err := tr.OTLP()
	require.NoError(t, err)
	var decoded tracepb.TracesData
	require.NoError(t, proto.Unmarshal(pb, &decoded))
	assert.True(t, proto.Equal(tr.Data, &decoded))

	js, err := tr.TempoJSON()
	require.NoError(t, err)
	var doc struct {
		Batches []map[string]any `json:"batches"`
	}
	require.NoError(t, json.Unmarshal(js, &doc))
	require.Len(t, doc.Batches, 1)
	assert.Contains(t, doc.Batches[0], "scopeSpans")
}

func TestProxySource_Fetch(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	since := now.Add(-24 * time.Hour)
	body, err := proto.Marshal(testData(now))
	require.NoError(t, err)

	var gotPath, gotSince string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotSince = r.URL.Query().Get("since")
		w.Header().Set("Content-Type", "application/x-protobuf")
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	src := &ProxySource{Client: srv.Client(), Host: srv.URL + "/"}
	ep := opsservice.TraceEndpoint{Service: "aio-broker-diagnostics-service", Port: "9800", Path: "v1/traces"}

	td, err := src.Fetch(context.Background(), "azure-iot-operations", ep, since)
	require.NoError(t, err)
	assert.Len(t, td.GetResourceSpans(), 1)
	assert.Equal(t, "/api/v1/namespaces/azure-iot-operations/services/aio-broker-diagnostics-service:9800/proxy/v1/traces", gotPath)
	assert.Equal(t, "1777550400", gotSince)
}

func TestProxySource_FetchErrors(t *testing.T) {
	ep := opsservice.TraceEndpoint{Service: "aio-broker-diagnostics-service", Port: "9800", Path: "/v1/traces"}

	t.Run("non-200", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "no endpoints available", http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		_, err := (&ProxySource{Client: srv.Client(), Host: srv.URL}).Fetch(context.Background(), "ns", ep, time.Now())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "503")
	})

	t.Run("garbage body", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte{0xff, 0xff, 0xff})
		}))
		defer srv.Close()

		_, err := (&ProxySource{Client: srv.Client(), Host: srv.URL}).Fetch(context.Background(), "ns", ep, time.Now())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to decode")
	})

	t.Run("unreachable", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		_, err := (&ProxySource{Host: url}).Fetch(context.Background(), "ns", ep, time.Now())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to reach trace endpoint")
	})
}

func TestProxySource_URLWithScheme(t *testing.T) {
	src := &ProxySource{Host: "https://cluster:6443"}
	ep := opsservice.TraceEndpoint{Service: "diag", Port: "9800", Path: "/v1/traces", Scheme: "https"}
	assert.Equal(t,
		"https://cluster:6443/api/v1/namespaces/ns/services/https:diag:9800/proxy/v1/traces?since=0",
		src.URL("ns", ep, time.Unix(0, 0)))
}
