package source

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

var collectionRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ScanDir walks a seed directory and discovers importable files.
//
// Layout:
//
//	<dir>/trans.yaml               -> collection "trans"
//	<dir>/trans/2024-05.jsonl      -> collection "trans"
//	<dir>/expense_categories.yml   -> collection "expense_categories"
//
// Files whose collection name is not a plain identifier are skipped.
func ScanDir(dir string) ([]DiscoveredFile, error) {
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	if !info.IsDir() {
		df, ok := classify(filepath.Dir(dir), dir)
		if !ok {
			return nil, nil
		}
		return []DiscoveredFile{df}, nil
	}

	var files []DiscoveredFile
	err = filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil //nolint:nilerr // skip unreadable entries
		}
		if d.IsDir() {
			if path != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if df, ok := classify(dir, path); ok {
			files = append(files, df)
		}
		return nil
	})

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, err
}

func classify(root, path string) (DiscoveredFile, bool) {
	name := filepath.Base(path)
	ext := strings.ToLower(filepath.Ext(name))

	var format Format
	switch ext {
	case ".yaml", ".yml":
		format = FormatYAML
	case ".jsonl":
		format = FormatJSONL
	default:
		return DiscoveredFile{}, false
	}

	rel, err := filepath.Rel(root, path)
	if err != nil {
		return DiscoveredFile{}, false
	}
	parts := strings.Split(rel, string(filepath.Separator))

	collection := strings.TrimSuffix(name, filepath.Ext(name))
	if len(parts) >= 2 {
		// Nested: the top-level directory names the collection
		collection = parts[0]
	}
	if !collectionRe.MatchString(collection) {
		return DiscoveredFile{}, false
	}

	return DiscoveredFile{Path: path, Collection: collection, Format: format}, true
}

// CountCollections returns the number of distinct collections in files.
func CountCollections(files []DiscoveredFile) int {
	seen := make(map[string]struct{})
	for _, f := range files {
		seen[f.Collection] = struct{}{}
	}
	return len(seen)
}
