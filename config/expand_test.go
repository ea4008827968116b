package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestExpandPath(t *testing.T) {
	t.Setenv("TOOLBATCH_TEST_DIR", "/var/cache")
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}

	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"/plain/path", "/plain/path"},
		{"${TOOLBATCH_TEST_DIR}/tool-cache.json", "/var/cache/tool-cache.json"},
		{"$TOOLBATCH_TEST_DIR/x", "/var/cache/x"},
		{"/price/$$5", "/price/$5"},
		{"~", home},
		{"~/.toolbatch/tool-cache.json", filepath.Join(home, ".toolbatch/tool-cache.json")},
		{"/not~/expanded", "/not~/expanded"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ExpandPath(tt.in)
			if err != nil {
				t.Fatalf("ExpandPath(%q) error = %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ExpandPath(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestExpandPath_MissingVariable(t *testing.T) {
	_, err := ExpandPath("${TOOLBATCH_SURELY_UNSET_B}/${TOOLBATCH_SURELY_UNSET_A}")
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("error = %v, want ErrInvalidConfig", err)
	}
	if got := err.Error(); !strings.Contains(got, "TOOLBATCH_SURELY_UNSET_A, TOOLBATCH_SURELY_UNSET_B") {
		t.Errorf("error %q should list sorted names", got)
	}
}

func TestLoad_ExpandsPaths(t *testing.T) {
	t.Setenv("TOOLBATCH_TEST_STATE", "/srv/state")
	path := writeFile(t, "toolbatch.yaml", "persistence:\n  path: ${TOOLBATCH_TEST_STATE}/cache.json\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Persistence.Path != "/srv/state/cache.json" {
		t.Errorf("Persistence.Path = %q", cfg.Persistence.Path)
	}
}
