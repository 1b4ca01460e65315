package version

import "testing"

func TestCompare(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"0.4.0", "0.4.0", 0},
		{"v0.4.0", "0.4.1", -1},
		{"1.0.0", "0.9.9", 1},
		{"0.10.0", "0.9.0", 1},
		{"1.2", "1.2.0", 0},
		{"0.5.0-rc1", "0.5.0", 0},
		{"dev", "0.0.1", -1},
		{"dev", "", 0},
		{"0.0.1", "dev", 1},
	}
	for _, tt := range tests {
		if got := Compare(tt.a, tt.b); got != tt.want {
			t.Errorf("Compare(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestNewer(t *testing.T) {
	old := Version
	Version = "0.4.0"
	t.Cleanup(func() { Version = old })

	if !Newer("0.5.0") {
		t.Fatal("0.5.0 should be newer than 0.4.0")
	}
	if Newer("0.4.0") || Newer("0.3.9") || Newer("dev") {
		t.Fatal("same, older and dev builds are not newer")
	}
}

func TestCurrent(t *testing.T) {
	info := Current()
	if info.Version != Version {
		t.Fatalf("Version = %q, want %q", info.Version, Version)
	}
	if info.GoVersion == "" {
		t.Fatal("expected a Go version")
	}
}
