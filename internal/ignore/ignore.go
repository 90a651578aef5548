package ignore

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	gitignore "github.com/denormal/go-gitignore"

	"cadventory/internal/logging"
)

// FileName is the per-library ignore file, in gitignore syntax.
const FileName = ".cadventoryignore"

// Matcher reports whether paths under a root should be skipped.
// Safe for concurrent use; Reload takes the write lock.
type Matcher struct {
	mu        sync.RWMutex
	rootDir   string
	fileRules gitignore.GitIgnore
	patterns  []string
	alwaysDir map[string]bool
}

// Options configures a Matcher.
type Options struct {
	RootDir string
	// Patterns are doublestar globs matched against the slash-separated path
	// relative to RootDir and against the base name.
	Patterns []string
	// AlwaysSkipDirs are directory base names skipped wherever they appear.
	AlwaysSkipDirs []string
}

// NewMatcher builds a matcher for a library root. Invalid glob patterns are
// logged and dropped.
func NewMatcher(opts Options) *Matcher {
	m := &Matcher{
		rootDir:   opts.RootDir,
		alwaysDir: make(map[string]bool, len(opts.AlwaysSkipDirs)),
	}
	for _, d := range opts.AlwaysSkipDirs {
		m.alwaysDir[d] = true
	}
	for _, p := range opts.Patterns {
		p = filepath.ToSlash(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		if !doublestar.ValidatePattern(p) {
			logging.Warn("Ignoring invalid ignore pattern %q", p)
			continue
		}
		m.patterns = append(m.patterns, p)
	}
	m.fileRules = loadIgnoreFile(filepath.Join(opts.RootDir, FileName), opts.RootDir)
	return m
}

// Ignore reports whether path should be skipped. isDir tells the gitignore
// rules whether a directory-only pattern can apply.
func (m *Matcher) Ignore(path string, isDir bool) bool {
	if m == nil {
		return false
	}
	if isDir && m.alwaysDir[filepath.Base(path)] {
		return true
	}

	rel, err := filepath.Rel(m.rootDir, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		rel = path
	}
	rel = filepath.ToSlash(rel)
	if rel == "." {
		return false
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.fileRules != nil {
		if match := m.fileRules.Relative(rel, isDir); match != nil && match.Ignore() {
			return true
		}
	}

	base := filepath.Base(path)
	for _, p := range m.patterns {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
		if ok, _ := doublestar.Match(p, base); ok {
			return true
		}
	}
	return false
}

// Patterns returns the accepted glob patterns.
func (m *Matcher) Patterns() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.patterns...)
}

// Reload re-reads the ignore file from disk.
func (m *Matcher) Reload() {
	rules := loadIgnoreFile(filepath.Join(m.rootDir, FileName), m.rootDir)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.fileRules = rules
}

func loadIgnoreFile(path, baseDir string) gitignore.GitIgnore {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	logging.Debug("Loaded ignore rules from %s", path)
	return gitignore.New(f, baseDir, nil)
}
