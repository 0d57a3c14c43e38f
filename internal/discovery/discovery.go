// Package discovery finds input archives.
package discovery

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// ErrBadPattern is returned for a malformed glob.
var ErrBadPattern = errors.New("invalid glob pattern")

// Find returns the regular files matching pattern in lexical order.
// Directories and unreadable entries are dropped. An empty result is not
// an error.
func Find(pattern string) ([]string, error) {
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrBadPattern, pattern, err)
	}

	files := make([]string, 0, len(matches))
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		files = append(files, m)
	}
	sort.Strings(files)
	return files, nil
}
