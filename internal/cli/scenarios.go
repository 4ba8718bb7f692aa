package cli

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// findScenarioFiles expands files and directories into the YAML scenario
// files they contain. Directories are walked recursively; golden
// directories are skipped. filter is a glob matched against the file name
// without its extension.
func findScenarioFiles(paths []string, filter string) ([]string, error) {
	if filter != "" {
		if _, err := filepath.Match(filter, ""); err != nil {
			return nil, fmt.Errorf("invalid filter pattern: %w", err)
		}
	}

	var files []string
	for _, root := range paths {
		info, err := os.Stat(root)
		if err != nil {
			return nil, NewExitError(ExitCommandError, fmt.Sprintf("path not found: %s", root))
		}

		if !info.IsDir() {
			if matchesFilter(root, filter) {
				files = append(files, root)
			}
			continue
		}

		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if path != root && d.Name() == "golden" {
					return filepath.SkipDir
				}
				return nil
			}
			if isScenarioFile(path) && matchesFilter(path, filter) {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to walk %s: %w", root, err)
		}
	}

	sort.Strings(files)
	return files, nil
}

func isScenarioFile(path string) bool {
	ext := filepath.Ext(path)
	return ext == ".yaml" || ext == ".yml"
}

func matchesFilter(path, filter string) bool {
	if filter == "" {
		return true
	}
	matched, _ := filepath.Match(filter, scenarioBaseName(path))
	return matched
}

// scenarioBaseName returns the file name without its extension.
func scenarioBaseName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// goldenFilePath returns the path to the golden file for a scenario:
// <dir>/golden/<name>.golden.
func goldenFilePath(scenarioFile string) string {
	return filepath.Join(filepath.Dir(scenarioFile), "golden", scenarioBaseName(scenarioFile)+".golden")
}
