// Package stage implements C3, the staging coordinator: recursive file
// discovery, bounded-parallelism dispatch to the C2 ingester, per-file
// event durability, and final manifest consolidation.
package stage

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// excludedDirs names vendor/cache roots skipped during discovery,
// alongside any hidden (leading-dot) directory.
var excludedDirs = map[string]bool{
	"vendor":       true,
	"node_modules": true,
	".cache":       true,
	"__pycache__":  true,
}

// Discover recursively walks root and returns every file whose name has
// the given extension, in lexicographic order for deterministic dispatch.
// Hidden directories, vendor/cache roots, and platform resource-fork files
// (leading "._") are excluded.
func Discover(root, extension string) ([]string, error) {
	var files []string

	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if d.IsDir() {
			if path == root {
				return nil
			}
			if strings.HasPrefix(name, ".") || excludedDirs[name] {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, "._") {
			return nil
		}
		if strings.EqualFold(filepath.Ext(name), extension) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(files)
	return files, nil
}
