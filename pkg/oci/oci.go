// Package oci pushes finished support bundles to an OCI registry as
// single-layer artifacts, so they can be pulled with any ORAS client.
package oci

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/distribution/reference"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"oras.land/oras-go/v2"
	"oras.land/oras-go/v2/content"
	"oras.land/oras-go/v2/content/memory"
	"oras.land/oras-go/v2/registry/remote"
	"oras.land/oras-go/v2/registry/remote/auth"
	"oras.land/oras-go/v2/registry/remote/credentials"
	"oras.land/oras-go/v2/registry/remote/retry"

	cerrors "github.com/edgeops/opsctl/pkg/errors"
)

const (
	// ArtifactType identifies an opsctl support bundle manifest.
	ArtifactType = "application/vnd.edgeops.opsctl.bundle.v1"
	// LayerMediaType is the media type of the zip layer.
	LayerMediaType = "application/vnd.edgeops.opsctl.bundle.v1+zip"

	// DefaultTag is used when no tag is given.
	DefaultTag = "latest"

	// AnnotationRunID carries the bundle run id.
	AnnotationRunID = "io.edgeops.opsctl.bundle.run-id"
	// AnnotationNamespace carries the platform namespace the bundle was taken from.
	AnnotationNamespace = "io.edgeops.opsctl.bundle.namespace"
)

// PushOptions describes where a bundle is pushed.
type PushOptions struct {
	Registry    string
	Repository  string
	Tag         string
	PlainHTTP   bool
	InsecureTLS bool

	// Annotations are added to the manifest.
	Annotations map[string]string
}

// Validate checks that the options form a valid tagged reference.
func (o PushOptions) Validate() error {
	if o.Registry == "" {
		return cerrors.New(cerrors.ErrCodeInvalidRequest, "registry is required to push a bundle")
	}
	if o.Repository == "" {
		return cerrors.New(cerrors.ErrCodeInvalidRequest, "repository is required to push a bundle")
	}
	if _, err := o.named(); err != nil {
		return cerrors.Wrap(cerrors.ErrCodeInvalidRequest, "invalid bundle reference", err)
	}
	return nil
}

// Reference returns registry/repository:tag.
func (o PushOptions) Reference() string {
	named, err := o.named()
	if err != nil {
		return fmt.Sprintf("%s/%s:%s", o.Registry, o.Repository, o.tag())
	}
	return named.String()
}

func (o PushOptions) tag() string {
	if o.Tag == "" {
		return DefaultTag
	}
	return o.Tag
}

func (o PushOptions) named() (reference.NamedTagged, error) {
	named, err := reference.ParseNamed(o.Registry + "/" + o.Repository)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s/%s: %w", o.Registry, o.Repository, err)
	}
	tagged, err := reference.WithTag(named, o.tag())
	if err != nil {
		return nil, fmt.Errorf("failed to tag %s: %w", named, err)
	}
	return tagged, nil
}

// PushResult describes a pushed artifact.
type PushResult struct {
	Reference string `json:"reference" yaml:"reference"`
	Digest    string `json:"digest" yaml:"digest"`
	Size      int64  `json:"size" yaml:"size"`
}

// Push uploads the archive at archivePath as an OCI artifact.
func Push(ctx context.Context, archivePath string, opts PushOptions) (*PushResult, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	repo, err := remote.NewRepository(opts.Registry + "/" + opts.Repository)
	if err != nil {
		return nil, cerrors.Wrap(cerrors.ErrCodeInvalidRequest, "invalid repository", err)
	}
	repo.PlainHTTP = opts.PlainHTTP
	repo.Client = newAuthClient(opts)

	res, err := push(ctx, repo, archivePath, opts)
	if err != nil {
		return nil, err
	}
	res.Reference = opts.Reference()
	return res, nil
}

// push packs the archive into an in-memory store and copies it to dst.
func push(ctx context.Context, dst oras.Target, archivePath string, opts PushOptions) (*PushResult, error) {
	data, err := os.ReadFile(archivePath)
	if err != nil {
		return nil, cerrors.WrapWithContext(cerrors.ErrCodeArchiveIO, "failed to read bundle archive", err,
			map[string]any{"path": archivePath})
	}

	store := memory.New()

	layer := content.NewDescriptorFromBytes(LayerMediaType, data)
	layer.Annotations = map[string]string{
		ocispec.AnnotationTitle: filepath.Base(archivePath),
	}
	if err := store.Push(ctx, layer, bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("failed to stage bundle layer: %w", err)
	}

	annotations := map[string]string{
		ocispec.AnnotationCreated: time.Now().UTC().Format(time.RFC3339),
	}
	for k, v := range opts.Annotations {
		annotations[k] = v
	}

	manifest, err := oras.PackManifest(ctx, store, oras.PackManifestVersion1_1, ArtifactType, oras.PackManifestOptions{
		Layers:              []ocispec.Descriptor{layer},
		ManifestAnnotations: annotations,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to pack bundle manifest: %w", err)
	}

	tag := opts.tag()
	if err := store.Tag(ctx, manifest, tag); err != nil {
		return nil, fmt.Errorf("failed to tag bundle manifest: %w", err)
	}

	slog.Info("pushing support bundle",
		slog.String("reference", opts.Reference()),
		slog.String("digest", manifest.Digest.String()),
		slog.Int64("size", layer.Size))

	desc, err := oras.Copy(ctx, store, tag, dst, tag, oras.DefaultCopyOptions)
	if err != nil {
		return nil, cerrors.WrapWithContext(cerrors.ErrCodeUnavailable, "failed to push bundle", err,
			map[string]any{"reference": opts.Reference()})
	}

	return &PushResult{
		Digest: desc.Digest.String(),
		Size:   layer.Size,
	}, nil
}

// newAuthClient resolves credentials from the docker credential store,
// falling back to anonymous access.
func newAuthClient(opts PushOptions) *auth.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if opts.InsecureTLS {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // explicit --insecure-tls
	}

	client := &auth.Client{
		Client: &http.Client{Transport: retry.NewTransport(transport)},
		Cache:  auth.NewCache(),
	}
	client.SetUserAgent("opsctl")

	store, err := credentials.NewStoreFromDocker(credentials.StoreOptions{})
	if err != nil {
		slog.Debug("no docker credential store, pushing anonymously", slog.String("error", err.Error()))
		return client
	}
	client.Credential = credentials.Credential(store)
	return client
}
