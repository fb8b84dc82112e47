package secrets

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestFileStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secrets.json")
	s := NewFileStore(path)

	if _, err := s.Get("provider/openai"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}

	if err := s.Put("provider/openai", "sk-test"); err != nil {
		t.Fatal(err)
	}
	got, err := s.Get("provider/openai")
	if err != nil {
		t.Fatal(err)
	}
	if got != "sk-test" {
		t.Errorf("Get = %q", got)
	}

	// Overwrite keeps the other keys.
	s.Put("provider/local", "none")
	s.Put("provider/openai", "sk-rotated")
	if got, _ := s.Get("provider/openai"); got != "sk-rotated" {
		t.Errorf("rotated = %q", got)
	}
	if got, _ := s.Get("provider/local"); got != "none" {
		t.Errorf("other key = %q", got)
	}
}

func TestFileStore_OwnerOnlyPermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("file modes are advisory on windows")
	}
	path := filepath.Join(t.TempDir(), "secrets.json")
	s := NewFileStore(path)
	if err := s.Put("k", "v"); err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("perm = %o, want 600", perm)
	}
}
