// Package discover enumerates the compilation units and scenes of a Unity
// project.
package discover

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	ignore "github.com/sabhiram/go-gitignore"
	"gopkg.in/yaml.v3"

	"github.com/jward/sceneref/internal/collect"
)

// File extensions of the assets discover looks for.
const (
	UnitExt  = ".cs"
	SceneExt = ".unity"
)

var skipDirs = map[string]struct{}{
	"Library":      {},
	"Temp":         {},
	"Logs":         {},
	"obj":          {},
	"Build":        {},
	"Builds":       {},
	"UserSettings": {},
	"node_modules": {},
}

// SkipDir reports whether a directory named name is left out of discovery.
// Unity itself ignores hidden folders and those ending in ~.
func SkipDir(name string) bool {
	if _, skip := skipDirs[name]; skip {
		return true
	}
	return strings.HasPrefix(name, ".") || strings.HasSuffix(name, "~")
}

// Units returns every C# unit under the given folders (relative to root, or
// the whole root when folders is empty), sorted by path. Paths are
// slash-separated and relative to root. Each unit's ID is the GUID from its
// .meta sidecar, or a name-based UUID of the path when there is none.
func Units(root string, folders []string) ([]collect.Unit, error) {
	paths, err := walk(root, folders, UnitExt)
	if err != nil {
		return nil, err
	}
	units := make([]collect.Unit, len(paths))
	for i, p := range paths {
		units[i] = collect.Unit{Path: p, ID: ContentID(root, p)}
	}
	return units, nil
}

// Scenes returns every scene under dirs (relative to root, or the whole root
// when dirs is empty), sorted by path.
func Scenes(root string, dirs []string) ([]string, error) {
	return walk(root, dirs, SceneExt)
}

// ContentID returns the Unity asset GUID for rel, read from rel + ".meta".
// Assets without a readable GUID get a stable UUID derived from the path.
func ContentID(root, rel string) string {
	if guid, err := readGUID(filepath.Join(root, filepath.FromSlash(rel)) + ".meta"); err == nil && guid != "" {
		return guid
	}
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(filepath.ToSlash(rel))).String()
}

func readGUID(metaPath string) (string, error) {
	data, err := os.ReadFile(metaPath)
	if err != nil {
		return "", err
	}
	var meta struct {
		GUID string `yaml:"guid"`
	}
	if err := yaml.Unmarshal(data, &meta); err != nil {
		return "", err
	}
	return meta.GUID, nil
}

func walk(root string, folders []string, ext string) ([]string, error) {
	if len(folders) == 0 {
		folders = []string{"."}
	}
	gi := loadGitignore(root)

	seen := make(map[string]struct{})
	var results []string
	for _, folder := range folders {
		start := filepath.Join(root, filepath.FromSlash(folder))
		info, err := os.Stat(start)
		if err != nil {
			return nil, fmt.Errorf("discover: folder %s: %w", folder, err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("discover: folder %s: not a directory", folder)
		}

		err = filepath.WalkDir(start, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil // skip errors
			}
			name := d.Name()
			rel, relErr := filepath.Rel(root, path)
			if relErr != nil {
				return nil
			}
			rel = filepath.ToSlash(rel)

			if d.IsDir() {
				if path == start {
					return nil
				}
				if SkipDir(name) {
					return filepath.SkipDir
				}
				if gi != nil && gi.MatchesPath(rel+"/") {
					return filepath.SkipDir
				}
				return nil
			}

			if strings.HasPrefix(name, ".") || d.Type()&fs.ModeSymlink != 0 {
				return nil
			}
			if !strings.EqualFold(filepath.Ext(name), ext) {
				return nil
			}
			if gi != nil && gi.MatchesPath(rel) {
				return nil
			}
			if _, dup := seen[rel]; dup {
				return nil
			}
			seen[rel] = struct{}{}
			results = append(results, rel)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	sort.Strings(results)
	return results, nil
}

func loadGitignore(root string) *ignore.GitIgnore {
	gi, err := ignore.CompileIgnoreFile(filepath.Join(root, ".gitignore"))
	if err != nil {
		return nil
	}
	return gi
}
