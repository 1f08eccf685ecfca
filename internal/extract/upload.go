package extract

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// Allowlist checks upload file names against a set of extensions
type Allowlist map[string]struct{}

// NewAllowlist builds an allowlist from extensions with or without dots
func NewAllowlist(extensions []string) Allowlist {
	a := make(Allowlist, len(extensions))
	for _, ext := range extensions {
		a[strings.ToLower(strings.TrimPrefix(ext, "."))] = struct{}{}
	}
	return a
}

// Allowed reports whether filename has an allowed extension
func (a Allowlist) Allowed(filename string) bool {
	i := strings.LastIndex(filename, ".")
	if i < 0 || i == len(filename)-1 {
		return false
	}
	_, ok := a[strings.ToLower(filename[i+1:])]
	return ok
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_.-]+`)

// SanitizeFilename reduces a client supplied name to a safe base name
func SanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	name = strings.Join(strings.Fields(name), "_")
	name = unsafeChars.ReplaceAllString(name, "")
	name = strings.Trim(name, "._")
	if name == "" {
		return "upload"
	}
	return name
}

// Save writes r into dir as <YYYYMMDD_HHMMSS>_<sanitized name> and returns
// the stored name and full path
func Save(dir, filename string, r io.Reader, now time.Time) (string, string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", "", fmt.Errorf("failed to create upload dir: %w", err)
	}

	stored := now.Format("20060102_150405") + "_" + SanitizeFilename(filename)
	path := filepath.Join(dir, stored)

	f, err := os.Create(path)
	if err != nil {
		return "", "", fmt.Errorf("failed to create upload file: %w", err)
	}

	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(path)
		return "", "", fmt.Errorf("failed to write upload file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", "", fmt.Errorf("failed to close upload file: %w", err)
	}

	return stored, path, nil
}
