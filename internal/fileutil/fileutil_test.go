package fileutil

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func writeFiles(t *testing.T, root string, paths ...string) {
	t.Helper()
	for _, p := range paths {
		full := filepath.Join(root, p)
		if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(full, []byte("# doc\n"), 0644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestFindMarkdownRecursiveSorted(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir,
		"zeta.md",
		"alpha.MD",
		"guide/setup.markdown",
		"guide/notes.txt",
		"node_modules/pkg/readme.md",
		".git/HEAD.md",
	)

	got, err := FindMarkdown(dir, 0)
	if err != nil {
		t.Fatalf("FindMarkdown: %v", err)
	}
	want := []string{"alpha.MD", filepath.Join("guide", "setup.markdown"), "zeta.md"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("files = %v, want %v", got, want)
	}
}

func TestFindMarkdownDepthLimit(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "top.md", "sub/deep.md")

	got, err := FindMarkdown(dir, 1)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, []string{"top.md"}) {
		t.Errorf("files = %v, want top.md only", got)
	}
}

func TestFindMarkdownMissingDir(t *testing.T) {
	got, err := FindMarkdown(filepath.Join(t.TempDir(), "nope"), 0)
	if err != nil {
		t.Fatalf("missing dir must not error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("files = %v, want none", got)
	}
}
