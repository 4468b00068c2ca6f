package discovery

import (
	"strings"

	"github.com/edgeops/opsctl/pkg/opsservice"
	"k8s.io/apimachinery/pkg/labels"
)

// matchesAny reports whether name matches at least one pattern.
func matchesAny(name string, patterns []string) bool {
	for _, p := range patterns {
		if matchesPattern(name, p) {
			return true
		}
	}
	return false
}

// matchesPattern checks if a name matches a wildcard pattern.
// Supports wildcard patterns:
//   - "prefix*" matches names starting with "prefix"
//   - "*suffix" matches names ending with "suffix"
//   - "*contains*" matches names containing "contains"
//   - "exact" matches names exactly
func matchesPattern(name, pattern string) bool {
	if !strings.Contains(pattern, "*") {
		return name == pattern
	}

	if strings.HasPrefix(pattern, "*") && strings.HasSuffix(pattern, "*") {
		return strings.Contains(name, strings.Trim(pattern, "*"))
	}

	if strings.HasPrefix(pattern, "*") {
		return strings.HasSuffix(name, strings.TrimPrefix(pattern, "*"))
	}

	if strings.HasSuffix(pattern, "*") {
		return strings.HasPrefix(name, strings.TrimSuffix(pattern, "*"))
	}

	return false
}

// workloadFilter selects workloads by name pattern or label selector.
type workloadFilter struct {
	patterns []string
	selector labels.Selector
}

func newWorkloadFilter(w opsservice.Workloads) (*workloadFilter, error) {
	f := &workloadFilter{patterns: w.Names}
	if w.LabelSelector != "" {
		sel, err := labels.Parse(w.LabelSelector)
		if err != nil {
			return nil, err
		}
		f.selector = sel
	}
	return f, nil
}

func (f *workloadFilter) match(r Resource) bool {
	if matchesAny(r.Name, f.patterns) {
		return true
	}
	return f.selector != nil && f.selector.Matches(labels.Set(r.Labels))
}
