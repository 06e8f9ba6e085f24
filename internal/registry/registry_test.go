package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ppiankov/snipharness/internal/snippet"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func byID(sns []*snippet.Snippet) map[string]*snippet.Snippet {
	m := make(map[string]*snippet.Snippet, len(sns))
	for _, sn := range sns {
		m[sn.ID] = sn
	}
	return m
}

func TestDiscoverTree(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "go", "embed-post", "embed-image-post", "main.go"),
		"package main\nfunc main() { _ = \"<<apiKey>>\" }\n")
	writeFile(t, filepath.Join(root, "python", "chat", "main.py"),
		"print('<<apiKey>>')\n")
	writeFile(t, filepath.Join(root, "shell", "chat", "stream.sh"),
		"curl -H \"Authorization: Bearer <<apiKey>>\" https://api.example.com\n")

	sns, err := Discover(root, nil)
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if len(sns) != 3 {
		t.Fatalf("expected 3 snippets, got %d", len(sns))
	}

	m := byID(sns)
	for _, id := range []string{"go/embed-post/embed-image-post", "python/chat", "shell/chat/stream"} {
		sn, ok := m[id]
		if !ok {
			t.Fatalf("missing snippet %q, have %v", id, ids(sns))
		}
		if !sn.Runnable() {
			t.Errorf("%s should be runnable (invalid=%v skip=%q)", id, sn.Invalid, sn.SkipReason)
		}
		if len(sn.RequiredSecrets) != 1 || sn.RequiredSecrets[0] != "apiKey" {
			t.Errorf("%s: unexpected secrets %v", id, sn.RequiredSecrets)
		}
	}
}

func TestDiscoverRootUnreadable(t *testing.T) {
	if _, err := Discover(filepath.Join(t.TempDir(), "missing"), nil); err == nil {
		t.Fatal("expected error for missing root")
	}
}

func TestDiscoverUnsupportedLanguage(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "ruby", "chat", "main.py"), "puts 'hi'\n")

	sns, err := Discover(root, nil)
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if len(sns) != 1 {
		t.Fatalf("expected 1 snippet, got %d", len(sns))
	}
	sn := sns[0]
	if sn.SkipReason != "unsupported language" {
		t.Errorf("expected unsupported-language skip, got %q", sn.SkipReason)
	}
	if sn.Language != snippet.Language("ruby") {
		t.Errorf("expected language tag preserved, got %q", sn.Language)
	}
}

func TestDiscoverEmptyFileInvalid(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "python", "empty", "main.py"), "  \n")

	sns, err := Discover(root, nil)
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if len(sns) != 1 || !sns[0].Invalid {
		t.Fatalf("expected one invalid snippet, got %+v", sns)
	}
	if sns[0].Runnable() {
		t.Error("invalid snippet must not be runnable")
	}
}

func TestDiscoverIgnoreList(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "go", "a", "main.go"), "package main\nfunc main() {}\n")
	writeFile(t, filepath.Join(root, "go", "b", "main.go"), "package main\nfunc main() {}\n")

	sns, err := Discover(root, []string{"go/a*"})
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	m := byID(sns)
	if m["go/a"].SkipReason != "ignored" {
		t.Errorf("go/a should be ignored, got %q", m["go/a"].SkipReason)
	}
	if m["go/b"].SkipReason != "" {
		t.Errorf("go/b should not be ignored, got %q", m["go/b"].SkipReason)
	}
}

func TestDiscoverSkipsSupportFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "go", "a", "main.go"), "package main\nfunc main() {}\n")
	// helper script inside the go tree is not a go snippet
	writeFile(t, filepath.Join(root, "go", "a", "setup.sh"), "echo setup\n")

	sns, err := Discover(root, nil)
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if len(sns) != 1 || sns[0].ID != "go/a" {
		t.Fatalf("expected only go/a, got %v", ids(sns))
	}
}

func TestDeriveID(t *testing.T) {
	cases := []struct {
		tag, rel, ext, want string
	}{
		{"go", "feat/variant/main.go", ".go", "go/feat/variant"},
		{"java", "feat/Main.java", ".java", "java/feat"},
		{"shell", "feat/stream.sh", ".sh", "shell/feat/stream"},
		{"python", "main.py", ".py", "python"},
		{"shell", "run.sh", ".sh", "shell/run"},
	}
	for _, c := range cases {
		if got := deriveID(c.tag, c.rel, c.ext); got != c.want {
			t.Errorf("deriveID(%q, %q) = %q, want %q", c.tag, c.rel, got, c.want)
		}
	}
}

func TestMatchGlob(t *testing.T) {
	cases := []struct {
		s, pattern string
		want       bool
	}{
		{"go/a", "go/a", true},
		{"go/a/b", "go/*", true},
		{"python/a", "go/*", false},
		{"go/chat-stream", "*stream", true},
		{"go/chat-stream", "go/*stream", true},
		{"go/a", "", false},
	}
	for _, c := range cases {
		if got := MatchGlob(c.s, c.pattern); got != c.want {
			t.Errorf("MatchGlob(%q, %q) = %v, want %v", c.s, c.pattern, got, c.want)
		}
	}
}

func ids(sns []*snippet.Snippet) []string {
	out := make([]string, len(sns))
	for i, sn := range sns {
		out[i] = sn.ID
	}
	return out
}
