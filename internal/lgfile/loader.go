package lgfile

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/leapstack-labs/leaplg/internal/lg"
)

// Ext is the file extension of template files.
const Ext = ".lg"

// LoadFiles parses the given files in order. A path listed more than once
// is read once.
func LoadFiles(paths ...string) ([]*lg.Template, error) {
	seen := make(map[string]bool, len(paths))
	var templates []*lg.Template
	for _, path := range paths {
		abs, err := filepath.Abs(path)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %s: %w", path, err)
		}
		if seen[abs] {
			continue
		}
		seen[abs] = true

		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		ts, err := Parse(string(content), path)
		if err != nil {
			return nil, err
		}
		templates = append(templates, ts...)
	}
	return templates, nil
}

// Files returns every .lg file under dir in lexical order.
func Files(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.EqualFold(filepath.Ext(path), Ext) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", dir, err)
	}
	sort.Strings(files)
	return files, nil
}

// LoadDir parses every .lg file under dir, recursively.
func LoadDir(dir string) ([]*lg.Template, error) {
	files, err := Files(dir)
	if err != nil {
		return nil, err
	}
	return LoadFiles(files...)
}
