package discovery

import (
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// maxScanDepth bounds the filesystem walk (§4.6: "maximum depth 3").
const maxScanDepth = 3

var composeFileNames = map[string]bool{
	"docker-compose.yml":  true,
	"docker-compose.yaml": true,
	"compose.yml":         true,
	"compose.yaml":        true,
}

// composeNameField is the subset of a compose file's top-level shape this
// scanner cares about: the optional explicit project name.
type composeNameField struct {
	Name string `yaml:"name"`
}

// ScannedProject is one compose file found by a filesystem walk.
type ScannedProject struct {
	Name string // effective project name
	Path string // absolute compose file path
}

// ScanPaths walks each root up to maxScanDepth, yielding one ScannedProject
// per discovered compose file (§4.6). The effective project name is the
// file's explicit `name:` field if present, else the containing directory's
// basename — matching the same precedence `docker compose` itself uses.
func ScanPaths(roots []string) []ScannedProject {
	var out []ScannedProject
	seen := make(map[string]bool)

	for _, root := range roots {
		walkDir(root, 0, func(path string) {
			if seen[path] {
				return
			}
			seen[path] = true
			out = append(out, ScannedProject{Name: effectiveProjectName(path), Path: path})
		})
	}
	return out
}

func walkDir(dir string, depth int, onComposeFile func(path string)) {
	if depth > maxScanDepth {
		return
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}

	for _, entry := range entries {
		name := entry.Name()
		full := filepath.Join(dir, name)

		if entry.IsDir() {
			if strings.HasPrefix(name, ".") {
				continue
			}
			walkDir(full, depth+1, onComposeFile)
			continue
		}

		if composeFileNames[name] {
			onComposeFile(full)
		}
	}
}

func effectiveProjectName(composePath string) string {
	data, err := os.ReadFile(composePath)
	if err == nil {
		var doc composeNameField
		if yaml.Unmarshal(data, &doc) == nil && strings.TrimSpace(doc.Name) != "" {
			return doc.Name
		}
	}
	return strings.ToLower(filepath.Base(filepath.Dir(composePath)))
}
