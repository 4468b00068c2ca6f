// Package traces fetches distributed traces from the broker diagnostics service
// and splits them into one OTLP document per trace.
package traces

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/edgeops/opsctl/pkg/opsservice"
	tracepb "go.opentelemetry.io/proto/otlp/trace/v1"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
)

// Subfolder is the folder traces are written to beneath the service folder.
const Subfolder = "traces"

// Source retrieves trace batches exported since a cutoff.
type Source interface {
	Fetch(ctx context.Context, namespace string, ep opsservice.TraceEndpoint, since time.Time) (*tracepb.TracesData, error)
}

// Trace holds the spans of one trace, keeping their resource and scope.
type Trace struct {
	ID    string
	Spans int
	Data  *tracepb.TracesData
}

// OTLPFileName returns <traceid>.otlp.pb.
func (t Trace) OTLPFileName() string { return t.ID + ".otlp.pb" }

// TempoFileName returns <traceid>.tempo.json.
func (t Trace) TempoFileName() string { return t.ID + ".tempo.json" }

// OTLP returns the trace as an OTLP TracesData protobuf.
func (t Trace) OTLP() ([]byte, error) {
	data, err := proto.Marshal(t.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal trace %s: %w", t.ID, err)
	}
	return data, nil
}

// TempoJSON returns the trace in the {"batches": [...]} layout Tempo imports.
func (t Trace) TempoJSON() ([]byte, error) {
	batches := make([]json.RawMessage, 0, len(t.Data.GetResourceSpans()))
	for _, rs := range t.Data.GetResourceSpans() {
		b, err := protojson.Marshal(rs)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal trace %s: %w", t.ID, err)
		}
		batches = append(batches, b)
	}
	out, err := json.MarshalIndent(struct {
		Batches []json.RawMessage `json:"batches"`
	}{Batches: batches}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal trace %s: %w", t.ID, err)
	}
	return out, nil
}

// Group drops spans that started before since and groups the rest by trace
// id. Traces are returned sorted by id.
func Group(data *tracepb.TracesData, since time.Time) []Trace {
	if data == nil {
		return nil
	}
	cutoff := uint64(0)
	if !since.IsZero() && since.UnixNano() > 0 {
		cutoff = uint64(since.UnixNano())
	}

	type scopeKey struct{ rs, ss int }
	byTrace := make(map[string]map[scopeKey][]*tracepb.Span)
	counts := make(map[string]int)

	for ri, rs := range data.GetResourceSpans() {
		for si, ss := range rs.GetScopeSpans() {
			for _, span := range ss.GetSpans() {
				if span.GetStartTimeUnixNano() < cutoff {
					continue
				}
				id := hex.EncodeToString(span.GetTraceId())
				if id == "" {
					continue
				}
				if byTrace[id] == nil {
					byTrace[id] = make(map[scopeKey][]*tracepb.Span)
				}
				k := scopeKey{ri, si}
				byTrace[id][k] = append(byTrace[id][k], span)
				counts[id]++
			}
		}
	}

	ids := make([]string, 0, len(byTrace))
	for id := range byTrace {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]Trace, 0, len(ids))
	for _, id := range ids {
		td := &tracepb.TracesData{}
		for ri, rs := range data.GetResourceSpans() {
			var scopes []*tracepb.ScopeSpans
			for si, ss := range rs.GetScopeSpans() {
				spans := byTrace[id][scopeKey{ri, si}]
				if len(spans) == 0 {
					continue
				}
				scopes = append(scopes, &tracepb.ScopeSpans{
					Scope:     ss.GetScope(),
					Spans:     spans,
					SchemaUrl: ss.GetSchemaUrl(),
				})
			}
			if len(scopes) == 0 {
				continue
			}
			td.ResourceSpans = append(td.ResourceSpans, &tracepb.ResourceSpans{
				Resource:   rs.GetResource(),
				ScopeSpans: scopes,
				SchemaUrl:  rs.GetSchemaUrl(),
			})
		}
		out = append(out, Trace{ID: id, Spans: counts[id], Data: td})
	}
	return out
}
