package bundler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/edgeops/opsctl/pkg/bundler/config"
	"github.com/edgeops/opsctl/pkg/defaults"
	cerrors "github.com/edgeops/opsctl/pkg/errors"
	"github.com/edgeops/opsctl/pkg/opsservice"
	"github.com/edgeops/opsctl/pkg/server"
)

// maxRequestBytes bounds the JSON request body.
const maxRequestBytes = 1 << 16

// BundleRequest is the JSON body of POST /v1/bundle. Every field is optional.
type BundleRequest struct {
	OpsService    string `json:"opsService,omitempty"`
	LogAgeSeconds int    `json:"logAgeSeconds,omitempty"`
	IncludeTraces bool   `json:"includeTraces,omitempty"`
	Namespace     string `json:"namespace,omitempty"`
}

// HandleBundles collects a support bundle from the cluster the server runs in
// and streams the archive back.
//
// Example:
//
//	POST /v1/bundle
//	Content-Type: application/json
//	Body: {"opsService": "broker", "logAgeSeconds": 3600, "includeTraces": true}
func (b *DefaultBundler) HandleBundles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		server.WriteError(w, r, http.StatusMethodNotAllowed, cerrors.ErrCodeMethodNotAllowed,
			"Method not allowed", false, map[string]interface{}{
				"method": r.Method,
			})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), defaults.BundleHandlerTimeout)
	defer cancel()

	var req BundleRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBytes)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		server.WriteError(w, r, http.StatusBadRequest, cerrors.ErrCodeInvalidRequest,
			"Invalid request body", false, map[string]interface{}{
				"error": err.Error(),
			})
		return
	}

	opts, err := req.options()
	if err != nil {
		server.WriteErrorFromErr(w, r, err, "Invalid bundle request", map[string]interface{}{
			"valid": opsservice.SupportedAsStrings(),
		})
		return
	}

	tempDir, err := os.MkdirTemp("", "opsctl-bundle-*")
	if err != nil {
		server.WriteError(w, r, http.StatusInternalServerError, cerrors.ErrCodeInternal,
			"Failed to create temporary directory", true, nil)
		return
	}
	defer os.RemoveAll(tempDir)

	cfg := b.cfg
	opts = append(opts,
		config.WithBundleDir(tempDir),
		config.WithTool(cfg.ToolName(), cfg.ToolVersion()),
		config.WithCatalogPath(cfg.CatalogPath()),
		config.WithWorkers(cfg.Workers()),
		config.WithAPIRateLimit(cfg.QPS(), cfg.Burst()),
	)

	slog.Debug("bundle request received",
		slog.String("ops_service", req.OpsService),
		slog.Int("log_age_seconds", req.LogAgeSeconds),
		slog.Bool("include_traces", req.IncludeTraces))

	nb := New(append(append([]Option{}, b.opts...), WithConfig(config.NewConfig(opts...)))...)
	out, err := nb.Make(ctx)
	if err != nil && (out == nil || out.ArchivePath == "") {
		server.WriteErrorFromErr(w, r, err, "Failed to create support bundle", nil)
		return
	}
	if err != nil && cerrors.CodeOf(err) != cerrors.ErrCodeCollectionFailed {
		server.WriteErrorFromErr(w, r, err, "Support bundle incomplete", map[string]interface{}{
			"failed_services": out.FailedServices(),
		})
		return
	}

	if err := streamArchive(w, out.ArchivePath, out.TotalFiles, out.ArchiveSize, out.TotalDuration, out.FailureCount()); err != nil {
		// headers are already sent
		slog.Error("failed to stream bundle", slog.String("error", err.Error()))
	}
}

func (req BundleRequest) options() ([]config.Option, error) {
	var opts []config.Option
	if req.OpsService != "" {
		t, err := opsservice.ParseType(req.OpsService)
		if err != nil {
			return nil, err
		}
		opts = append(opts, config.WithOpsService(t))
	}
	if req.LogAgeSeconds < 0 {
		return nil, cerrors.New(cerrors.ErrCodeInvalidRequest,
			fmt.Sprintf("logAgeSeconds must be positive, got %d", req.LogAgeSeconds))
	}
	if req.LogAgeSeconds > 0 {
		opts = append(opts, config.WithLogAgeSeconds(req.LogAgeSeconds))
	}
	opts = append(opts,
		config.WithIncludeTraces(req.IncludeTraces),
		config.WithNamespace(req.Namespace),
	)
	return opts, nil
}

// streamArchive sends the finished archive as the response body.
func streamArchive(w http.ResponseWriter, archive string, files int, size int64, d time.Duration, failed int) error {
	f, err := os.Open(archive)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer f.Close()

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(archive)))
	w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	w.Header().Set("X-Bundle-Files", strconv.Itoa(files))
	w.Header().Set("X-Bundle-Size", strconv.FormatInt(size, 10))
	w.Header().Set("X-Bundle-Duration", d.String())
	w.Header().Set("X-Bundle-Failed-Services", strconv.Itoa(failed))
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("failed to copy archive: %w", err)
	}
	return nil
}
