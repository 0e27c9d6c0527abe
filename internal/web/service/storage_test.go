package service

import (
	"errors"
	"os"
	"strings"
	"testing"
)

func TestFileStorageRoundTrip(t *testing.T) {
	s := NewFileStorage(t.TempDir())

	ref, err := s.SaveImage("sess-1", "Plan.JPG", []byte("jpeg"))
	if err != nil {
		t.Fatalf("SaveImage failed: %v", err)
	}
	if ref != "sess-1/image.jpg" {
		t.Errorf("ref = %q", ref)
	}
	data, err := s.Read(ref)
	if err != nil || string(data) != "jpeg" {
		t.Fatalf("Read = %q, %v", data, err)
	}

	noExt, err := s.SaveImage("sess-1", "plan", []byte("raw"))
	if err != nil {
		t.Fatalf("SaveImage failed: %v", err)
	}
	if noExt != "sess-1/image.bin" {
		t.Errorf("ref without extension = %q", noExt)
	}

	a1, err := s.SaveArchive("sess-1", []byte("zip-1"))
	if err != nil {
		t.Fatalf("SaveArchive failed: %v", err)
	}
	a2, err := s.SaveArchive("sess-1", []byte("zip-2"))
	if err != nil {
		t.Fatalf("SaveArchive failed: %v", err)
	}
	if a1 == a2 || !strings.HasPrefix(a1, "sess-1/result-") || !strings.HasSuffix(a1, ".zip") {
		t.Errorf("archive refs = %q, %q", a1, a2)
	}

	if err := s.Remove(a1); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if err := s.Remove(a1); err != nil {
		t.Errorf("second Remove should be a no-op, got %v", err)
	}
	if _, err := s.Read(a1); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Read removed = %v", err)
	}

	if err := s.RemoveSession("sess-1"); err != nil {
		t.Fatalf("RemoveSession failed: %v", err)
	}
	if _, err := os.Stat(s.SessionDir("sess-1")); !os.IsNotExist(err) {
		t.Errorf("session dir should be gone, stat err = %v", err)
	}
}

func TestFileStorageRejectsInvalidRefs(t *testing.T) {
	s := NewFileStorage(t.TempDir())

	refs := []string{"", "one", "../etc/passwd", "a/../b", "a/b/c", "a/..", "./x", `a\b/c`, "a/"}
	for _, ref := range refs {
		if _, err := s.Read(ref); !errors.Is(err, ErrInvalidRef) {
			t.Errorf("Read(%q) err = %v, want ErrInvalidRef", ref, err)
		}
	}
	if err := s.Remove(""); err != nil {
		t.Errorf("Remove(\"\") = %v, want nil", err)
	}
	for _, sid := range []string{"", ".", "..", "a/b"} {
		if err := s.RemoveSession(sid); !errors.Is(err, ErrInvalidRef) {
			t.Errorf("RemoveSession(%q) err = %v", sid, err)
		}
	}
}
