package bundler

import (
	"archive/zip"
	"fmt"
	"path"
	"sort"
	"strings"
)

// WalkEntry lists the immediate children of one archive directory.
type WalkEntry struct {
	Folders []string `json:"folders" yaml:"folders"`
	Files   []string `json:"files" yaml:"files"`
}

// Walk opens the archive at zipPath and returns every directory it contains,
// keyed by its slash-separated path, with sorted child folders and files.
// The archive root is keyed by "".
func Walk(zipPath string) (map[string]*WalkEntry, error) {
	zr, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive %s: %w", zipPath, err)
	}
	defer zr.Close()

	tree := map[string]*WalkEntry{"": {}}
	get := func(dir string) *WalkEntry {
		e, ok := tree[dir]
		if !ok {
			e = &WalkEntry{}
			tree[dir] = e
		}
		return e
	}
	parent := func(p string) string {
		d := path.Dir(p)
		if d == "." {
			return ""
		}
		return d
	}

	// folders are registered bottom-up so implicit parents appear too
	var addDir func(dir string)
	addDir = func(dir string) {
		if dir == "" {
			return
		}
		if _, ok := tree[dir]; ok {
			return
		}
		get(dir)
		p := parent(dir)
		addDir(p)
		pe := get(p)
		pe.Folders = append(pe.Folders, path.Base(dir))
	}

	for _, f := range zr.File {
		name := strings.TrimSuffix(f.Name, "/")
		if f.FileInfo().IsDir() || strings.HasSuffix(f.Name, "/") {
			addDir(name)
			continue
		}
		dir := parent(name)
		addDir(dir)
		e := get(dir)
		e.Files = append(e.Files, path.Base(name))
	}

	for _, e := range tree {
		sort.Strings(e.Folders)
		sort.Strings(e.Files)
	}
	return tree, nil
}
