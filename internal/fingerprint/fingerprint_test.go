package fingerprint

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestFileStable(t *testing.T) {
	data := bytes.Repeat([]byte("castellan"), 50_000)
	a := writeFile(t, "a.mkv", data)
	b := writeFile(t, "b.mkv", data)

	fa, err := File(a)
	if err != nil {
		t.Fatal(err)
	}
	fb, err := File(b)
	if err != nil {
		t.Fatal(err)
	}
	if fa != fb {
		t.Fatalf("identical content hashed differently: %s vs %s", fa, fb)
	}
	if len(fa) != 16 {
		t.Fatalf("fingerprint %q is not 16 hex chars", fa)
	}
}

func TestFileDetectsTailChange(t *testing.T) {
	data := bytes.Repeat([]byte{0xAB}, 300*1024)
	orig := writeFile(t, "orig.mkv", data)

	changed := make([]byte, len(data))
	copy(changed, data)
	changed[len(changed)-1] ^= 0xFF
	mod := writeFile(t, "mod.mkv", changed)

	fo, err := File(orig)
	if err != nil {
		t.Fatal(err)
	}
	fm, err := File(mod)
	if err != nil {
		t.Fatal(err)
	}
	if fo == fm {
		t.Fatal("tail change not reflected in fingerprint")
	}
}

func TestFileSmall(t *testing.T) {
	small := writeFile(t, "small.mp4", []byte("tiny"))
	if _, err := File(small); err != nil {
		t.Fatalf("small file: %v", err)
	}
}

func TestFileMissing(t *testing.T) {
	if _, err := File(filepath.Join(t.TempDir(), "nope.mkv")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
