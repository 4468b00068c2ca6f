package bundler

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/flate"
)

// ArchiveName returns the bundle file name for a run started at t.
func ArchiveName(t time.Time) string {
	return fmt.Sprintf("support_bundle_%s_aio.zip", t.UTC().Format("20060102T150405"))
}

// writeArchive writes the layout as a zip to dest and returns its size.
// Entries are written in name order with modTime so two runs over the same
// content produce the same member list. The archive is written to a
// temporary file in the destination directory and renamed into place.
func writeArchive(l *Layout, dest string, modTime time.Time) (int64, error) {
	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("failed to create bundle dir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".support_bundle-*.tmp")
	if err != nil {
		return 0, fmt.Errorf("failed to create archive in %s: %w", dir, err)
	}
	tmpName := tmp.Name()
	defer func() {
		// no-op after a successful rename
		_ = os.Remove(tmpName)
	}()

	if err := writeZip(tmp, l, modTime); err != nil {
		_ = tmp.Close()
		return 0, err
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("failed to close archive: %w", err)
	}
	if err := os.Rename(tmpName, dest); err != nil {
		return 0, fmt.Errorf("failed to move archive to %s: %w", dest, err)
	}

	info, err := os.Stat(dest)
	if err != nil {
		return 0, fmt.Errorf("failed to stat archive %s: %w", dest, err)
	}
	return info.Size(), nil
}

func writeZip(w io.Writer, l *Layout, modTime time.Time) error {
	zw := zip.NewWriter(w)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.DefaultCompression)
	})

	for _, e := range l.entries() {
		hdr := &zip.FileHeader{
			Name:     e.name,
			Method:   zip.Deflate,
			Modified: modTime,
		}
		if e.dir {
			hdr.Method = zip.Store
			hdr.SetMode(os.ModeDir | 0o755)
		} else {
			hdr.SetMode(0o644)
		}

		fw, err := zw.CreateHeader(hdr)
		if err != nil {
			return fmt.Errorf("failed to create zip entry %s: %w", e.name, err)
		}
		if e.dir {
			continue
		}
		if _, err := fw.Write(e.data); err != nil {
			return fmt.Errorf("failed to write zip entry %s: %w", e.name, err)
		}
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to finalize zip: %w", err)
	}
	return nil
}
