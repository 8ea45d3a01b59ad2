// Package discover finds encodable source files in a corpus directory.
//
// A labelled corpus is laid out as root/<label>/<file>: the name of the
// directory holding a file is its label.
package discover

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	ignore "github.com/sabhiram/go-gitignore"

	"github.com/phobologic/codeclass/internal/lang"
)

// FileEntry represents a discovered source file.
type FileEntry struct {
	Path     string // Relative to the corpus root
	Language string
	// Label is the name of the directory containing the file, or "" for
	// files directly under the root.
	Label string
}

var skipDirs = map[string]struct{}{
	"__pycache__":   {},
	"node_modules":  {},
	".git":          {},
	".hg":           {},
	".svn":          {},
	"venv":          {},
	".venv":         {},
	"build":         {},
	"dist":          {},
	".tox":          {},
	".mypy_cache":   {},
	".pytest_cache": {},
	"vendor":        {},
}

// Files discovers encodable source files under root.
// If languages is non-empty, only files matching one of the listed languages are returned.
func Files(root string, languages []string) ([]FileEntry, error) {
	langSet := make(map[string]struct{}, len(languages))
	for _, l := range languages {
		langSet[l] = struct{}{}
	}
	gitFiles := gitLsFiles(root)
	var gi *ignore.GitIgnore
	if gitFiles == nil {
		gi = loadGitignore(root)
	}

	var results []FileEntry

	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // skip errors
		}

		name := d.Name()

		if d.IsDir() {
			if path == root {
				return nil
			}
			if _, skip := skipDirs[name]; skip || strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}

		if strings.HasPrefix(name, ".") {
			return nil
		}

		// Skip symlinks
		if d.Type()&os.ModeSymlink != 0 {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}

		if gitFiles != nil {
			if _, ok := gitFiles[filepath.ToSlash(rel)]; !ok {
				return nil
			}
		} else if gi != nil && gi.MatchesPath(rel) {
			return nil
		}

		langName := lang.ForExtension(filepath.Ext(name))
		if langName == "" {
			return nil
		}

		if len(langSet) > 0 {
			if _, ok := langSet[langName]; !ok {
				return nil
			}
		}

		results = append(results, FileEntry{Path: rel, Language: langName, Label: labelOf(rel)})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Path < results[j].Path
	})

	return results, nil
}

// Expand resolves command-line arguments into source files. Directories are
// walked with Files; plain files are kept when their extension maps to a
// language. Returned paths are usable as given (not relative to anything).
func Expand(args []string, languages []string) ([]FileEntry, error) {
	var out []FileEntry
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", arg, err)
		}
		if !info.IsDir() {
			langName := lang.ForExtension(filepath.Ext(arg))
			if langName == "" {
				return nil, fmt.Errorf("%s: unsupported file extension %q", arg, filepath.Ext(arg))
			}
			out = append(out, FileEntry{Path: arg, Language: langName})
			continue
		}
		entries, err := Files(arg, languages)
		if err != nil {
			return nil, fmt.Errorf("discovering %s: %w", arg, err)
		}
		for _, e := range entries {
			e.Path = filepath.Join(arg, e.Path)
			out = append(out, e)
		}
	}
	return out, nil
}

// Labels returns the distinct labels of entries in sorted order.
func Labels(entries []FileEntry) []string {
	seen := make(map[string]struct{})
	var labels []string
	for _, e := range entries {
		if e.Label == "" {
			continue
		}
		if _, ok := seen[e.Label]; !ok {
			seen[e.Label] = struct{}{}
			labels = append(labels, e.Label)
		}
	}
	sort.Strings(labels)
	return labels
}

func labelOf(rel string) string {
	dir := filepath.Dir(rel)
	if dir == "." {
		return ""
	}
	return filepath.Base(dir)
}

func gitLsFiles(root string) map[string]struct{} {
	gitDir := filepath.Join(root, ".git")
	info, err := os.Stat(gitDir)
	if err != nil || !info.IsDir() {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", "ls-files", "--cached", "--others", "--exclude-standard")
	cmd.Dir = root
	out, err := cmd.Output()
	if err != nil {
		return nil
	}

	files := make(map[string]struct{})
	for _, line := range strings.Split(strings.TrimRight(string(out), "\n"), "\n") {
		if line != "" {
			files[line] = struct{}{}
		}
	}
	return files
}

func loadGitignore(root string) *ignore.GitIgnore {
	path := filepath.Join(root, ".gitignore")
	gi, err := ignore.CompileIgnoreFile(path)
	if err != nil {
		return nil
	}
	return gi
}
