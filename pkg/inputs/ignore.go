package inputs

import (
	"bufio"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar"
)

// IgnoreFileName is the per-tree ignore file, searched from each input
// directory upwards.
const IgnoreFileName = ".bsmanalyzeignore"

// --- ignoreMatcher ---

type ignoreMatcher struct {
	patterns []ignorePattern
	basePath string // Absolute path of the directory being expanded
	logger   *slog.Logger
}

type ignorePattern struct {
	pattern     string // Pattern with '/' separators, without '!', leading or trailing '/'
	origPattern string
	negated     bool
	isDirOnly   bool
	isRooted    bool   // Pattern started with '/' and only matches from its base
	baseAbsPath string // Directory the pattern is relative to
}

// newIgnoreMatcher loads the nearest ignore file above dir and appends the
// configured patterns, which are relative to dir.
func newIgnoreMatcher(dir string, configPatterns []string, logger *slog.Logger) (*ignoreMatcher, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("could not get absolute path for %s: %w", dir, err)
	}
	m := &ignoreMatcher{
		basePath: absDir,
		logger:   logger.With(slog.String("component", "ignoreMatcher")),
	}

	ignoreFile, err := findIgnoreFile(absDir)
	if err != nil {
		m.logger.Warn("Error searching for ignore file", slog.String("error", err.Error()))
	}
	if ignoreFile != "" {
		filePatterns, err := loadPatternsFromFile(ignoreFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load ignore file %s: %w", ignoreFile, err)
		}
		m.addPatterns(filePatterns, filepath.Dir(ignoreFile))
		m.logger.Debug("Loaded ignore file", slog.String("path", ignoreFile), slog.Int("count", len(filePatterns)))
	}
	m.addPatterns(configPatterns, absDir)
	return m, nil
}

// findIgnoreFile walks up from absStartPath looking for IgnoreFileName.
func findIgnoreFile(absStartPath string) (string, error) {
	current := absStartPath
	for {
		candidate := filepath.Join(current, IgnoreFileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("error checking for ignore file at %s: %w", candidate, err)
		}
		parent := filepath.Dir(current)
		if parent == current {
			return "", nil
		}
		current = parent
	}
}

// loadPatternsFromFile returns the non-empty, non-comment lines of path.
func loadPatternsFromFile(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open ignore file %s: %w", path, err)
	}
	defer file.Close()

	var patterns []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" && !strings.HasPrefix(line, "#") {
			patterns = append(patterns, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read ignore file %s: %w", path, err)
	}
	return patterns, nil
}

func (m *ignoreMatcher) addPatterns(raw []string, baseAbsPath string) {
	for _, r := range raw {
		p := ignorePattern{origPattern: r, baseAbsPath: baseAbsPath}
		trimmed := strings.TrimSpace(r)
		if strings.HasPrefix(trimmed, "!") {
			p.negated = true
			trimmed = trimmed[1:]
		}
		if strings.HasPrefix(trimmed, "/") {
			p.isRooted = true
			trimmed = strings.TrimPrefix(trimmed, "/")
		}
		if strings.HasSuffix(trimmed, "/") {
			p.isDirOnly = true
			trimmed = strings.TrimSuffix(trimmed, "/")
		}
		p.pattern = filepath.ToSlash(trimmed)
		if p.pattern == "" {
			continue
		}
		if _, err := doublestar.Match(p.pattern, ""); err != nil {
			m.logger.Warn("Skipping malformed ignore pattern", slog.String("pattern", r), slog.String("error", err.Error()))
			continue
		}
		m.patterns = append(m.patterns, p)
	}
}

// Match reports whether relPath (relative to the matcher's base, '/'
// separated) is ignored. The last matching pattern wins; '!' re-includes.
func (m *ignoreMatcher) Match(relPath string, isDir bool) (bool, string) {
	ignored, by := false, ""
	for _, p := range m.patterns {
		if p.isDirOnly && !isDir {
			continue
		}
		if matchPattern(p, m.basePath, relPath) {
			ignored = !p.negated
			by = p.origPattern
		}
	}
	if !ignored {
		return false, ""
	}
	return true, by
}

func (m *ignoreMatcher) patternCount() int { return len(m.patterns) }

// matchPattern applies one gitignore-style pattern. Unrooted patterns match
// against every trailing run of path segments, so "*.tmp" ignores
// "a/b/x.tmp" and "calib" ignores "runs/calib".
func matchPattern(p ignorePattern, walkBase, relPath string) bool {
	if relPath == "" || relPath == "." {
		return false
	}
	rel, err := filepath.Rel(p.baseAbsPath, filepath.Join(walkBase, filepath.FromSlash(relPath)))
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	if strings.HasPrefix(rel, "../") {
		return false
	}
	if ok, _ := doublestar.Match(p.pattern, rel); ok {
		return true
	}
	if p.isRooted {
		return false
	}
	parts := strings.Split(rel, "/")
	for i := 1; i < len(parts); i++ {
		if ok, _ := doublestar.Match(p.pattern, strings.Join(parts[i:], "/")); ok {
			return true
		}
	}
	return false
}
