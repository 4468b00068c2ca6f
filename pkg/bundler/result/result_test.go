package result

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/edgeops/opsctl/pkg/opsservice"
)

func TestNewResult(t *testing.T) {
	r := NewResult(opsservice.TypeBroker)

	if r.Service != opsservice.TypeBroker {
		t.Errorf("Service = %v, want %v", r.Service, opsservice.TypeBroker)
	}
	if r.Files == nil {
		t.Error("Files should be initialized")
	}
	if r.Errors == nil {
		t.Error("Errors should be initialized")
	}
	if r.Success {
		t.Error("Success should be false initially")
	}
	if r.HasContent() {
		t.Error("new result should have no content")
	}
}

func TestResult_AddFile(t *testing.T) {
	r := NewResult(opsservice.TypeBroker)

	r.AddFile("aio/broker/broker.default.yaml", 100)
	r.AddFile("aio/broker/pod.aio-broker-0.broker.log", 200)

	if len(r.Files) != 2 {
		t.Errorf("len(Files) = %d, want 2", len(r.Files))
	}
	if r.Size != 300 {
		t.Errorf("Size = %d, want 300", r.Size)
	}
	if !r.HasContent() {
		t.Error("HasContent() = false, want true")
	}
}

func TestResult_AddError(t *testing.T) {
	r := NewResult(opsservice.TypeBroker)

	r.AddError(nil)
	if len(r.Errors) != 0 {
		t.Errorf("len(Errors) = %d, want 0", len(r.Errors))
	}

	r.AddError(errors.New("list failed"))
	if len(r.Errors) != 1 || r.Errors[0] != "list failed" {
		t.Errorf("Errors = %v, want [list failed]", r.Errors)
	}
}

func testOutput() *Output {
	return &Output{
		Results: []*Result{
			{Service: opsservice.TypeBroker, Success: true, Files: []string{"a"}, Warnings: []string{"trace endpoint unavailable"}},
			{Service: opsservice.TypeOpcua, Success: false},
			{Service: opsservice.TypeMeta, Success: true, Files: []string{"b"}},
		},
		Errors: []ServiceError{
			{Service: opsservice.TypeOpcua, Error: "forbidden"},
		},
	}
}

func TestOutput_Counts(t *testing.T) {
	o := testOutput()

	if got := o.SuccessCount(); got != 2 {
		t.Errorf("SuccessCount() = %d, want 2", got)
	}
	if got := o.FailureCount(); got != 1 {
		t.Errorf("FailureCount() = %d, want 1", got)
	}
	if got := o.WarningCount(); got != 1 {
		t.Errorf("WarningCount() = %d, want 1", got)
	}
	if !o.HasErrors() {
		t.Error("HasErrors() = false, want true")
	}
	if !o.HasContent() {
		t.Error("HasContent() = false, want true")
	}
}

func TestOutput_HasContent(t *testing.T) {
	o := &Output{Results: []*Result{NewResult(opsservice.TypeBroker)}}
	if o.HasContent() {
		t.Error("HasContent() = true for empty results")
	}
}

func TestOutput_ByService(t *testing.T) {
	byService := testOutput().ByService()

	if len(byService) != 3 {
		t.Fatalf("ByService() returned %d results, want 3", len(byService))
	}
	if r, ok := byService[opsservice.TypeOpcua]; !ok || r.Success {
		t.Errorf("opcua result = %+v, want failed entry", r)
	}
}

func TestOutput_FailedAndSuccessfulServices(t *testing.T) {
	o := testOutput()

	failed := o.FailedServices()
	if len(failed) != 1 || failed[0] != opsservice.TypeOpcua {
		t.Errorf("FailedServices() = %v, want [opcua]", failed)
	}

	ok := o.SuccessfulServices()
	if len(ok) != 2 || ok[0] != opsservice.TypeBroker || ok[1] != opsservice.TypeMeta {
		t.Errorf("SuccessfulServices() = %v, want [broker meta]", ok)
	}
}

func TestOutput_Summary(t *testing.T) {
	o := testOutput()
	o.TotalFiles = 10
	o.TotalSize = 5 * 1024 * 1024
	o.TotalDuration = 2500 * time.Millisecond

	summary := o.Summary()
	for _, want := range []string{"10 files", "5.0 MB", "2.5s", "2/3 services", "1 warnings"} {
		if !strings.Contains(summary, want) {
			t.Errorf("Summary() = %q, missing %q", summary, want)
		}
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		name  string
		bytes int64
		want  string
	}{
		{"bytes", 100, "100 B"},
		{"kilobytes", 1024, "1.0 KB"},
		{"megabytes", 1024 * 1024, "1.0 MB"},
		{"gigabytes", 1024 * 1024 * 1024, "1.0 GB"},
		{"mixed", 1536, "1.5 KB"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatBytes(tt.bytes); got != tt.want {
				t.Errorf("formatBytes(%d) = %s, want %s", tt.bytes, got, tt.want)
			}
		})
	}
}
