package fileutil

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func TestWriteFileAtomicReplacesContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "out.yaml")

	if err := WriteFileAtomic(path, []byte("first"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := WriteFileAtomic(path, []byte("second"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "second" {
		t.Fatalf("content mismatch: got %q", got)
	}
	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Fatalf("expected temp files cleaned up, found %d entries", len(entries))
	}
}

func TestWriteStreamAtomic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stream.bin")
	err := WriteStreamAtomic(path, 0o600, func(w io.Writer) error {
		_, err := io.WriteString(w, "streamed")
		return err
	})
	if err != nil {
		t.Fatal(err)
	}
	got, _ := os.ReadFile(path)
	if string(got) != "streamed" {
		t.Fatalf("content mismatch: got %q", got)
	}

	failing := filepath.Join(t.TempDir(), "never.bin")
	if err := WriteStreamAtomic(failing, 0o600, func(io.Writer) error { return fmt.Errorf("boom") }); err == nil {
		t.Fatal("expected writer error to propagate")
	}
	if _, err := os.Stat(failing); !os.IsNotExist(err) {
		t.Fatalf("failed write must not leave a file, stat err=%v", err)
	}
}

func TestWriteUniqueAddsSuffix(t *testing.T) {
	dir := t.TempDir()

	first, err := WriteUnique(dir, "cat.jpg", []byte("one"), 0o644)
	if err != nil {
		t.Fatal(err)
	}
	second, err := WriteUnique(dir, "cat.jpg", []byte("two"), 0o644)
	if err != nil {
		t.Fatal(err)
	}
	third, err := WriteUnique(dir, "cat.jpg", []byte("three"), 0o644)
	if err != nil {
		t.Fatal(err)
	}

	want := []string{"cat.jpg", "cat_1.jpg", "cat_2.jpg"}
	for i, path := range []string{first, second, third} {
		if filepath.Base(path) != want[i] {
			t.Fatalf("write %d landed at %s, want %s", i, filepath.Base(path), want[i])
		}
	}
	got, _ := os.ReadFile(first)
	if string(got) != "one" {
		t.Fatalf("original file was overwritten: %q", got)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 3 {
		t.Fatalf("expected 3 files, found %d", len(entries))
	}
}

func TestWriteUniqueConcurrentWritersNeverCollide(t *testing.T) {
	dir := t.TempDir()
	const writers = 16

	var wg sync.WaitGroup
	paths := make([]string, writers)
	errs := make([]error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			paths[i], errs[i] = WriteUnique(dir, "dup.png", []byte(fmt.Sprintf("%d", i)), 0o644)
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool, writers)
	for i, path := range paths {
		if errs[i] != nil {
			t.Fatalf("writer %d failed: %v", i, errs[i])
		}
		if seen[path] {
			t.Fatalf("path %s used twice", path)
		}
		seen[path] = true
		got, _ := os.ReadFile(path)
		if string(got) != fmt.Sprintf("%d", i) {
			t.Fatalf("writer %d content mismatch: %q", i, got)
		}
	}
}

func TestWriteUniqueRequiresName(t *testing.T) {
	if _, err := WriteUnique(t.TempDir(), " ", []byte("x"), 0o644); err == nil {
		t.Fatal("expected error for empty name")
	}
}
