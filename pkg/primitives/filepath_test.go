package primitives

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFilepath_Hash(t *testing.T) {
	tests := []struct {
		name string
		a, b Filepath
		same bool
	}{
		{"same path hashes equal", "/data/users.dat", "/data/users.dat", true},
		{"different paths differ", "/data/users.dat", "/data/orders.dat", false},
		{"suffix changes identity", "/data/users.dat", "/data/users.dat_enc", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.a.Hash() == tt.b.Hash()
			if got != tt.same {
				t.Errorf("Hash(%q)==Hash(%q) = %v, want %v", tt.a, tt.b, got, tt.same)
			}
		})
	}
}

func TestFilepath_HashIsStable(t *testing.T) {
	// FNV-1a of the empty input is the offset basis.
	if got := Filepath("").Hash(); got != TableID(0xcbf29ce484222325) {
		t.Errorf("Hash(\"\") = %x, want offset basis", uint64(got))
	}
}

func TestFilepath_Abs(t *testing.T) {
	abs, err := Filepath("relative/table.dat").Abs()
	if err != nil {
		t.Fatalf("Abs failed: %v", err)
	}
	if !filepath.IsAbs(string(abs)) {
		t.Errorf("expected absolute path, got %q", abs)
	}
}

func TestFilepath_WithSuffix(t *testing.T) {
	if got := Filepath("/tmp/t.dat").WithSuffix("_enc"); got != "/tmp/t.dat_enc" {
		t.Errorf("WithSuffix = %q", got)
	}
}

func TestFilepath_Remove(t *testing.T) {
	path := Filepath(filepath.Join(t.TempDir(), "gone.dat"))
	if err := os.WriteFile(string(path), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	if !path.Exists() {
		t.Fatal("file should exist")
	}
	if err := path.Remove(); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if path.Exists() {
		t.Error("file should be gone")
	}
	if err := path.Remove(); err != nil {
		t.Errorf("second Remove should be a no-op, got %v", err)
	}
}
