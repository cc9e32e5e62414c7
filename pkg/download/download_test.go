package download

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestSaveBlobWritesFileAndCleansUp(t *testing.T) {
	root := filepath.Join(t.TempDir(), "downloads")
	d, err := NewDir(root)
	if err != nil {
		t.Fatalf("NewDir: %v", err)
	}

	path, err := d.SaveBlob(context.Background(), []byte("a,b\n"), "report.csv")
	if err != nil {
		t.Fatalf("SaveBlob: %v", err)
	}
	if path != filepath.Join(root, "report.csv") {
		t.Fatalf("unexpected path %s", path)
	}
	content, err := os.ReadFile(path)
	if err != nil || string(content) != "a,b\n" {
		t.Fatalf("unexpected content %q err=%v", content, err)
	}

	names := listDir(t, root)
	if len(names) != 1 || names[0] != "report.csv" {
		t.Fatalf("pending files left behind: %v", names)
	}
}

func TestSaveBlobStripsDirectories(t *testing.T) {
	root := t.TempDir()
	d := &Dir{Root: root}

	path, err := d.SaveBlob(context.Background(), []byte("x"), "../../etc/passwd")
	if err != nil {
		t.Fatalf("SaveBlob: %v", err)
	}
	if path != filepath.Join(root, "passwd") {
		t.Fatalf("expected file confined to root, got %s", path)
	}

	path, err = d.SaveBlob(context.Background(), []byte("x"), `C:\tmp\win.txt`)
	if err != nil {
		t.Fatalf("SaveBlob windows path: %v", err)
	}
	if filepath.Base(path) != "win.txt" {
		t.Fatalf("expected windows separators stripped, got %s", path)
	}
}

func TestSaveBlobRejectsEmptyName(t *testing.T) {
	d := &Dir{Root: t.TempDir()}
	for _, name := range []string{"", "  ", ".", ".."} {
		if _, err := d.SaveBlob(context.Background(), []byte("x"), name); err == nil {
			t.Fatalf("expected error for name %q", name)
		}
	}
}

func TestSaveBlobHonoursCancelledContext(t *testing.T) {
	root := t.TempDir()
	d := &Dir{Root: root}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := d.SaveBlob(ctx, []byte("x"), "a.bin"); err == nil {
		t.Fatalf("expected context error")
	}
	if names := listDir(t, root); len(names) != 0 {
		t.Fatalf("expected nothing written, got %v", names)
	}
}

func TestSaveLinkWritesShortcut(t *testing.T) {
	root := t.TempDir()
	d := &Dir{Root: root}

	path, err := d.SaveLink(context.Background(), "https://cdn.example.com/files/a.pdf", "a.pdf")
	if err != nil {
		t.Fatalf("SaveLink: %v", err)
	}
	if path != filepath.Join(root, "a.pdf.url") {
		t.Fatalf("unexpected shortcut path %s", path)
	}
	content, _ := os.ReadFile(path)
	if !strings.Contains(string(content), "URL=https://cdn.example.com/files/a.pdf") {
		t.Fatalf("shortcut does not point at href: %q", content)
	}
	if names := listDir(t, root); len(names) != 1 {
		t.Fatalf("pending files left behind: %v", names)
	}
}

func TestSaveLinkRequiresHref(t *testing.T) {
	d := &Dir{Root: t.TempDir()}
	if _, err := d.SaveLink(context.Background(), " ", "a.pdf"); err == nil {
		t.Fatalf("expected error for empty href")
	}
}

func TestNewDirRequiresRoot(t *testing.T) {
	if _, err := NewDir(" "); err == nil {
		t.Fatalf("expected error for empty root")
	}
}
