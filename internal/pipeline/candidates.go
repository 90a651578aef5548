package pipeline

import (
	"path/filepath"
	"regexp"
	"strings"
)

// treeMember matches one {op name} pair of a combination listing.
var treeMember = regexp.MustCompile(`\{\s*[-+u]\s+([^{}\s]+)\s*\}`)

// sanitizeName trims whitespace and trailing path separators, then drops
// every character outside [A-Za-z0-9_.].
func sanitizeName(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimRight(s, `/\`)

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '.':
			b.WriteRune(r)
		}
	}
	return b.String()
}

// parseTopObjects splits toolkit output into sanitized, non-empty names in
// the order printed.
func parseTopObjects(output string) []string {
	var names []string
	for _, tok := range strings.Fields(output) {
		if name := sanitizeName(tok); name != "" {
			names = append(names, name)
		}
	}
	return names
}

// parseTree returns the sanitized member names of a combination listing,
// without duplicates, in the order printed.
func parseTree(output string) []string {
	var names []string
	seen := make(map[string]bool)
	for _, m := range treeMember.FindAllStringSubmatch(output, -1) {
		name := sanitizeName(m[1])
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return names
}

// candidateObjects lists the objects worth trying to render: conventional
// names first, then the file's own top-level objects, without duplicates.
func candidateObjects(path string, tops []string) []string {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	ordered := append([]string{"all", "all.g", stem, stem + ".g", stem + ".c"}, tops...)

	seen := make(map[string]bool, len(ordered))
	out := make([]string, 0, len(ordered))
	for _, c := range ordered {
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}

// extractTitle prefers stdout, falls back to stderr, then "Unknown".
func extractTitle(stdout, stderr string) string {
	if t := strings.TrimSpace(stdout); t != "" {
		return t
	}
	if t := strings.TrimSpace(stderr); t != "" {
		return t
	}
	return UnknownTitle
}
