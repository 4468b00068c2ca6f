package bundler

import (
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/edgeops/opsctl/pkg/collector"
)

// Layout is the in-memory tree of the bundle. It is safe for concurrent use.
type Layout struct {
	mu    sync.Mutex
	files map[string][]byte
	dirs  map[string]struct{}
}

// NewLayout returns an empty Layout.
func NewLayout() *Layout {
	return &Layout{
		files: make(map[string][]byte),
		dirs:  make(map[string]struct{}),
	}
}

// Add places f at its archive path and returns the path used. A path that
// is already taken gets a -N suffix before the extension.
func (l *Layout) Add(f collector.File) string {
	l.mu.Lock()
	defer l.mu.Unlock()

	p := f.Path()
	if _, taken := l.files[p]; taken {
		ext := path.Ext(p)
		base := strings.TrimSuffix(p, ext)
		for n := 1; ; n++ {
			candidate := fmt.Sprintf("%s-%d%s", base, n, ext)
			if _, taken := l.files[candidate]; !taken {
				p = candidate
				break
			}
		}
	}
	l.files[p] = f.Data
	return p
}

// AddDir records a directory that must exist even without files.
func (l *Layout) AddDir(dir string) {
	dir = strings.Trim(path.Clean(dir), "/")
	if dir == "" || dir == "." {
		return
	}
	l.mu.Lock()
	l.dirs[dir] = struct{}{}
	l.mu.Unlock()
}

// Len returns the number of files.
func (l *Layout) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.files)
}

// Size returns the total size of all files in bytes.
func (l *Layout) Size() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	var n int64
	for _, b := range l.files {
		n += int64(len(b))
	}
	return n
}

// entry is one archive member. Directories have a trailing slash and no data.
type entry struct {
	name string
	data []byte
	dir  bool
}

// entries returns every directory and file, sorted by name. Parent
// directories of files are included.
func (l *Layout) entries() []entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	dirs := make(map[string]struct{}, len(l.dirs))
	addParents := func(p string) {
		for d := p; d != "." && d != "/" && d != ""; d = path.Dir(d) {
			dirs[d] = struct{}{}
		}
	}
	for d := range l.dirs {
		addParents(d)
	}
	for p := range l.files {
		addParents(path.Dir(p))
	}

	out := make([]entry, 0, len(dirs)+len(l.files))
	for d := range dirs {
		out = append(out, entry{name: d + "/", dir: true})
	}
	for p, b := range l.files {
		out = append(out, entry{name: p, data: b})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}
