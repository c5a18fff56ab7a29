package fetcher

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// ZIPLimits bounds archive extraction.
type ZIPLimits struct {
	// MaxEntries caps the number of extracted files (0 = unlimited).
	MaxEntries int
	// MaxEntryBytes caps the uncompressed size of one entry (0 = unlimited).
	MaxEntryBytes int64
}

// IsZIP reports whether path names a ZIP archive by extension.
func IsZIP(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".zip")
}

// ExtractZIP extracts all files from a ZIP archive to the destination
// directory and returns their paths in archive order. Directory entries and
// macOS resource forks are skipped.
func ExtractZIP(zipPath, destDir string, limits ZIPLimits) ([]string, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, eris.Wrapf(err, "zip: open archive %s", zipPath)
	}
	defer r.Close() //nolint:errcheck

	var extracted []string
	for _, f := range r.File {
		if f.FileInfo().IsDir() || strings.HasPrefix(f.Name, "__MACOSX/") {
			continue
		}
		if limits.MaxEntries > 0 && len(extracted) >= limits.MaxEntries {
			return extracted, eris.Errorf("zip: %s has more than %d entries", zipPath, limits.MaxEntries)
		}
		path, err := extractZIPEntry(f, destDir, limits.MaxEntryBytes)
		if err != nil {
			return extracted, err
		}
		extracted = append(extracted, path)
	}

	return extracted, nil
}

// extractZIPEntry extracts a single zip.File to the destination directory.
func extractZIPEntry(f *zip.File, destDir string, maxBytes int64) (string, error) {
	// Sanitize against zip slip
	destPath := filepath.Join(destDir, f.Name)
	if !strings.HasPrefix(filepath.Clean(destPath), filepath.Clean(destDir)+string(os.PathSeparator)) {
		return "", eris.Errorf("zip: illegal path %q (zip slip attempt)", f.Name)
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return "", eris.Wrap(err, "zip: create parent directory")
	}

	rc, err := f.Open()
	if err != nil {
		return "", eris.Wrapf(err, "zip: open entry %s", f.Name)
	}
	defer rc.Close() //nolint:errcheck

	var src io.Reader = rc
	if maxBytes > 0 {
		src = io.LimitReader(rc, maxBytes+1)
	}
	n, err := writeFile(destPath, src)
	if err != nil {
		return "", eris.Wrapf(err, "zip: write %s", f.Name)
	}
	if maxBytes > 0 && n > maxBytes {
		os.Remove(destPath) //nolint:errcheck
		return "", eris.Errorf("zip: entry %s exceeds %d bytes", f.Name, maxBytes)
	}

	return destPath, nil
}
