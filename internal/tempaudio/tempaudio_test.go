package tempaudio

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestMaterializeRoundTrip(t *testing.T) {
	dir := t.TempDir()
	payload := []byte("riff-wav-bytes")

	res, err := Materialize(dir, "user-1", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("Materialize err: %v", err)
	}

	if _, err := os.Stat(res.Path()); err != nil {
		t.Fatalf("materialized file missing: %v", err)
	}

	got, err := res.Bytes()
	if err != nil {
		t.Fatalf("Bytes err: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("payload mismatch: %q", got)
	}

	path := res.Path()
	if err := res.Close(); err != nil {
		t.Fatalf("Close err: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("file should be removed after Close, stat err: %v", err)
	}
}

func TestMaterializeNamesDoNotCollide(t *testing.T) {
	dir := t.TempDir()

	first, err := Materialize(dir, "same-user", bytes.NewReader([]byte("one")))
	if err != nil {
		t.Fatalf("Materialize err: %v", err)
	}
	second, err := Materialize(dir, "same-user", bytes.NewReader([]byte("two")))
	if err != nil {
		t.Fatalf("Materialize err: %v", err)
	}

	if first.Path() == second.Path() {
		t.Fatalf("back-to-back resources share a name: %s", first.Path())
	}

	if err := first.Close(); err != nil {
		t.Fatalf("Close err: %v", err)
	}
	if err := second.Close(); err != nil {
		t.Fatalf("Close err: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir err: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("temp dir should be empty, found %d entries", len(entries))
	}
}

func TestMaterializeSanitizesOwner(t *testing.T) {
	dir := t.TempDir()

	res, err := Materialize(dir, "../evil/user", bytes.NewReader([]byte("x")))
	if err != nil {
		t.Fatalf("Materialize err: %v", err)
	}
	defer res.Close()

	if filepath.Dir(res.Path()) != dir {
		t.Fatalf("resource escaped the target dir: %s", res.Path())
	}
	if strings.Contains(filepath.Base(res.Path()), "/") {
		t.Fatalf("unsanitized name: %s", res.Path())
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	res, err := Materialize(t.TempDir(), "u", bytes.NewReader([]byte("x")))
	if err != nil {
		t.Fatalf("Materialize err: %v", err)
	}

	if err := res.Close(); err != nil {
		t.Fatalf("first Close err: %v", err)
	}
	if err := res.Close(); err != nil {
		t.Fatalf("second Close err: %v", err)
	}
}
