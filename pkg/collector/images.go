package collector

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/distribution/reference"
	"github.com/edgeops/opsctl/pkg/discovery"
	"github.com/edgeops/opsctl/pkg/header"
	"gopkg.in/yaml.v3"
)

// ImageInventoryKind is the document kind of images.yaml.
const ImageInventoryKind = "ImageInventory"

// Image is one container image reference and where it runs.
type Image struct {
	Reference  string   `json:"reference" yaml:"reference"`
	Domain     string   `json:"domain,omitempty" yaml:"domain,omitempty"`
	Repository string   `json:"repository,omitempty" yaml:"repository,omitempty"`
	Tag        string   `json:"tag,omitempty" yaml:"tag,omitempty"`
	Digest     string   `json:"digest,omitempty" yaml:"digest,omitempty"`
	Error      string   `json:"error,omitempty" yaml:"error,omitempty"`
	Locations  []string `json:"locations" yaml:"locations"`
}

// ImageInventory lists the images running in the platform namespace.
type ImageInventory struct {
	header.Header `json:",inline" yaml:",inline"`
	Images        []Image `json:"images" yaml:"images"`
}

// CollectImages builds the image inventory from pods. Locations are
// <namespace>/<pod>:<container>, with init- and ephemeral- prefixes.
func CollectImages(ctx context.Context, pods []discovery.Resource, now time.Time) (*ImageInventory, error) {
	locations := make(map[string][]string)
	record := func(image, location string) {
		if image == "" {
			return
		}
		locations[image] = append(locations[image], location)
	}

	for _, r := range pods {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		pod, ok := r.Pod()
		if !ok {
			continue
		}
		prefix := fmt.Sprintf("%s/%s", pod.Namespace, pod.Name)
		for _, c := range pod.Spec.Containers {
			record(c.Image, fmt.Sprintf("%s:%s", prefix, c.Name))
		}
		for _, c := range pod.Spec.InitContainers {
			record(c.Image, fmt.Sprintf("%s:init-%s", prefix, c.Name))
		}
		for _, c := range pod.Spec.EphemeralContainers {
			record(c.Image, fmt.Sprintf("%s:ephemeral-%s", prefix, c.Name))
		}
	}

	inv := &ImageInventory{Images: make([]Image, 0, len(locations))}
	inv.Set(ImageInventoryKind, now)
	for ref, locs := range locations {
		sort.Strings(locs)
		inv.Images = append(inv.Images, parseImage(ref, locs))
	}
	sort.Slice(inv.Images, func(i, j int) bool {
		return inv.Images[i].Reference < inv.Images[j].Reference
	})

	slog.Debug("collected container images", slog.Int("count", len(inv.Images)))
	return inv, nil
}

func parseImage(ref string, locations []string) Image {
	img := Image{Reference: ref, Locations: locations}

	named, err := reference.ParseNormalizedNamed(ref)
	if err != nil {
		img.Error = err.Error()
		return img
	}
	img.Domain = reference.Domain(named)
	img.Repository = reference.Path(named)
	if tagged, ok := named.(reference.Tagged); ok {
		img.Tag = tagged.Tag()
	}
	if digested, ok := named.(reference.Digested); ok {
		img.Digest = digested.Digest().String()
	}
	return img
}

// Marshal renders the inventory as YAML.
func (inv *ImageInventory) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(inv)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal image inventory: %w", err)
	}
	return data, nil
}
