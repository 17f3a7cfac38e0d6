package fileutil

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	illegalChars = regexp.MustCompile(`[\/\\:*?"<>|]`)
	separators   = regexp.MustCompile(`[\s_]+`)
)

// maxCollisions bounds the numbered names tried by ReservePath.
const maxCollisions = 999

// SanitizeForFilename turns input into a filename stem of at most 50 bytes,
// returning fallback when nothing usable remains.
func SanitizeForFilename(input, fallback string) string {
	s := illegalChars.ReplaceAllString(input, "_")
	s = separators.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-.")
	if len(s) > 50 {
		s = strings.TrimRight(s[:50], "-")
	}
	if s == "" {
		return fallback
	}
	return s
}

// ReservePath claims dir/base+ext, or dir/base-N+ext for the first N >= 2
// not taken, by creating it empty with O_EXCL. Concurrent callers never get
// the same path. The caller overwrites or removes the placeholder.
func ReservePath(dir, base, ext string) (string, error) {
	for i := 1; i <= maxCollisions; i++ {
		name := base + ext
		if i > 1 {
			name = fmt.Sprintf("%s-%d%s", base, i, ext)
		}
		path := filepath.Join(dir, name)
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("reserve %s: %w", name, err)
		}
		if err := f.Close(); err != nil {
			_ = os.Remove(path)
			return "", fmt.Errorf("reserve %s: %w", name, err)
		}
		return path, nil
	}
	return "", fmt.Errorf("no free filename for %s%s in %s", base, ext, dir)
}
