package fileutil

import (
	"os"
	"path/filepath"
	"testing"
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

func TestCopyFileVerified(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.m4b")
	dst := filepath.Join(dir, "dst.m4b")
	writeFile(t, src, "chapter one")

	if err := CopyFileVerified(src, dst); err != nil {
		t.Fatal(err)
	}
	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "chapter one" {
		t.Fatalf("content mismatch: got %q", got)
	}
}

func TestCopyFileVerifiedMissingSource(t *testing.T) {
	dir := t.TempDir()
	if err := CopyFileVerified(filepath.Join(dir, "nope"), filepath.Join(dir, "dst")); err == nil {
		t.Fatal("expected error for missing source")
	}
}

func TestMoveFileCreatesParentAndRefusesOverwrite(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a", "01.mp3")
	dst := filepath.Join(dir, "b", "c", "01.mp3")
	writeFile(t, src, "audio")

	if err := MoveFile(src, dst); err != nil {
		t.Fatalf("move: %v", err)
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Fatalf("source still present: %v", err)
	}
	if _, err := os.Stat(dst); err != nil {
		t.Fatalf("destination missing: %v", err)
	}

	writeFile(t, src, "other")
	if err := MoveFile(src, dst); err == nil {
		t.Fatal("expected refusal to overwrite")
	}
}

func TestManifestComparisons(t *testing.T) {
	dir := t.TempDir()
	full := filepath.Join(dir, "full")
	part := filepath.Join(dir, "part")
	writeFile(t, filepath.Join(full, "01.mp3"), "one")
	writeFile(t, filepath.Join(full, "02.mp3"), "two!")
	writeFile(t, filepath.Join(full, "cover", "front.jpg"), "jpg")
	writeFile(t, filepath.Join(part, "01.mp3"), "one")

	fm, err := ReadManifest(full)
	if err != nil {
		t.Fatal(err)
	}
	pm, err := ReadManifest(part)
	if err != nil {
		t.Fatal(err)
	}
	if len(fm) != 3 || fm["cover/front.jpg"] != 3 {
		t.Fatalf("unexpected manifest %v", fm)
	}
	if !pm.StrictSubsetOf(fm) || fm.StrictSubsetOf(pm) {
		t.Fatal("subset relation wrong")
	}
	missing := pm.Missing(fm)
	if len(missing) != 2 || missing[0] != "02.mp3" || missing[1] != "cover/front.jpg" {
		t.Fatalf("missing = %v", missing)
	}
	if fm.Key() == pm.Key() || fm.Key() == "" {
		t.Fatal("keys should differ and be non-empty")
	}

	same, _ := ReadManifest(full)
	if !same.Equal(fm) || same.Key() != fm.Key() {
		t.Fatal("identical folders should compare equal")
	}

	empty, err := ReadManifest(filepath.Join(dir, "absent"))
	if err != nil {
		t.Fatalf("missing dir should be empty, got %v", err)
	}
	if len(empty) != 0 || empty.Key() != "" {
		t.Fatalf("expected empty manifest, got %v", empty)
	}
}

func TestRemoveEmptyDirsStopsAtRoot(t *testing.T) {
	root := t.TempDir()
	leaf := filepath.Join(root, "Author", "Series", "Title")
	if err := os.MkdirAll(leaf, 0o755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, filepath.Join(root, "Author", "keep.txt"), "x")

	RemoveEmptyDirs(leaf, root)
	if _, err := os.Stat(filepath.Join(root, "Author", "Series")); !os.IsNotExist(err) {
		t.Fatal("empty series folder should be removed")
	}
	if _, err := os.Stat(filepath.Join(root, "Author")); err != nil {
		t.Fatal("non-empty author folder should stay")
	}
	if _, err := os.Stat(root); err != nil {
		t.Fatal("root must never be removed")
	}
}

func TestSameContentComparesBytes(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.mp3")
	b := filepath.Join(dir, "b.mp3")
	c := filepath.Join(dir, "c.mp3")
	writeFile(t, a, "chapter one")
	writeFile(t, b, "chapter one")
	writeFile(t, c, "chapter two")

	if same, err := SameContent(a, b); err != nil || !same {
		t.Fatalf("SameContent(a, b) = %v, %v", same, err)
	}
	if same, err := SameContent(a, c); err != nil || same {
		t.Fatalf("equal sizes with different bytes reported same: %v, %v", same, err)
	}
	if _, err := SameContent(a, filepath.Join(dir, "missing")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
