package registry

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/ppiankov/snipharness/internal/snippet"
)

// extensions maps an entry-file extension to its language tag. A file only
// becomes a snippet when its extension agrees with the top-level directory
// it lives under; anything else is treated as a support file.
var extensions = map[string]snippet.Language{
	".sh":   snippet.LangShell,
	".py":   snippet.LangPython,
	".js":   snippet.LangNode,
	".ts":   snippet.LangTypeScript,
	".go":   snippet.LangGo,
	".java": snippet.LangJava,
}

// placeholderPattern matches credential placeholders in snippet bodies,
// e.g. <<apiKey>>.
var placeholderPattern = regexp.MustCompile(`<<([A-Za-z][A-Za-z0-9_]*)>>`)

// Discover walks the snippet tree and returns every discoverable snippet.
// The tree layout is <root>/<language>/<feature...>/<variant>/main.<ext>.
// It fails only when the root itself is unreadable or two snippets derive
// the same ID; malformed individual files become Invalid placeholders and
// unknown language directories become Skipped entries.
func Discover(root string, ignore []string) ([]*snippet.Snippet, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("read snippet root %s: %w", root, err)
	}

	var snippets []*snippet.Snippet
	seen := make(map[string]string) // id → source path

	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		tag := e.Name()
		dir := filepath.Join(root, tag)

		found, err := discoverLanguage(dir, tag)
		if err != nil {
			return nil, err
		}
		for _, sn := range found {
			if prev, dup := seen[sn.ID]; dup {
				return nil, fmt.Errorf("duplicate snippet id %q (%s and %s)", sn.ID, prev, sn.SourcePath)
			}
			seen[sn.ID] = sn.SourcePath
			if sn.SkipReason == "" && matchesAny(sn.ID, ignore) {
				sn.SkipReason = "ignored"
			}
			snippets = append(snippets, sn)
		}
	}

	sort.Slice(snippets, func(i, j int) bool { return snippets[i].ID < snippets[j].ID })
	slog.Debug("discovery complete", "root", root, "snippets", len(snippets))
	return snippets, nil
}

// discoverLanguage walks one top-level language directory. For unknown tags
// every entry-like file still yields a Skipped snippet so nothing goes
// silently missing from the report.
func discoverLanguage(dir, tag string) ([]*snippet.Snippet, error) {
	supported := snippet.Known(tag)
	lang := snippet.Language(tag)

	var out []*snippet.Snippet
	walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// an unreadable subtree aborts only that file's snippets
			slog.Warn("discovery error", "path", path, "error", err)
			return nil
		}
		if d.IsDir() {
			return nil
		}

		ext := filepath.Ext(d.Name())
		fileLang, known := extensions[ext]
		if !known {
			return nil
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return nil
		}
		id := deriveID(tag, rel, ext)

		if !supported {
			out = append(out, &snippet.Snippet{
				ID:         id,
				Language:   lang,
				SourcePath: path,
				SkipReason: "unsupported language",
			})
			return nil
		}
		if fileLang != lang {
			// support file for another runtime (e.g. go.mod helper scripts)
			return nil
		}

		sn := &snippet.Snippet{ID: id, Language: lang, SourcePath: path}
		data, readErr := os.ReadFile(path)
		switch {
		case readErr != nil:
			sn.Invalid = true
			sn.InvalidReason = fmt.Sprintf("read snippet: %v", readErr)
		case len(strings.TrimSpace(string(data))) == 0:
			sn.Invalid = true
			sn.InvalidReason = "empty snippet file"
		default:
			sn.Body = string(data)
			sn.RequiredSecrets = extractSecrets(sn.Body)
		}
		out = append(out, sn)
		return nil
	})
	if walkErr != nil {
		return nil, fmt.Errorf("walk %s: %w", dir, walkErr)
	}
	return out, nil
}

// deriveID builds a stable snippet ID from its location: the language tag
// plus the path inside the language directory. Entry files named main.*
// (or Main.java) collapse to their variant directory.
func deriveID(tag, rel, ext string) string {
	rel = filepath.ToSlash(rel)
	base := strings.TrimSuffix(filepath.Base(rel), ext)
	dir := filepath.ToSlash(filepath.Dir(rel))

	if base == "main" || base == "Main" {
		if dir == "." {
			return tag
		}
		return tag + "/" + dir
	}
	if dir == "." {
		return tag + "/" + base
	}
	return tag + "/" + dir + "/" + base
}

// extractSecrets returns the sorted unique placeholder names in a body.
func extractSecrets(body string) []string {
	matches := placeholderPattern.FindAllStringSubmatch(body, -1)
	if len(matches) == 0 {
		return nil
	}
	uniq := make(map[string]struct{}, len(matches))
	for _, m := range matches {
		uniq[m[1]] = struct{}{}
	}
	names := make([]string, 0, len(uniq))
	for n := range uniq {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func matchesAny(id string, patterns []string) bool {
	for _, p := range patterns {
		if MatchGlob(id, p) {
			return true
		}
	}
	return false
}

// MatchGlob does simple glob matching supporting a single * wildcard.
func MatchGlob(s, pattern string) bool {
	if s == pattern {
		return true
	}

	if strings.HasSuffix(pattern, "*") {
		prefix := strings.TrimSuffix(pattern, "*")
		return strings.HasPrefix(s, prefix)
	}

	if strings.HasPrefix(pattern, "*") {
		suffix := strings.TrimPrefix(pattern, "*")
		return strings.HasSuffix(s, suffix)
	}

	if idx := strings.Index(pattern, "*"); idx >= 0 {
		prefix := pattern[:idx]
		suffix := pattern[idx+1:]
		return strings.HasPrefix(s, prefix) && strings.HasSuffix(s, suffix)
	}

	return false
}
