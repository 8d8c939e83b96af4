package tools

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLookup(t *testing.T) {
	dir := t.TempDir()
	bin := filepath.Join(dir, "mpv-custom")
	if err := os.WriteFile(bin, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatal(err)
	}

	notFound := func(string) (string, error) { return "", errors.New("not found") }
	onPath := func(name string) (string, error) { return "/usr/bin/" + name, nil }

	tests := []struct {
		name     string
		env      map[string]string
		lookPath func(string) (string, error)
		want     string
		wantErr  string
	}{
		{
			name:     "env override",
			env:      map[string]string{MPV.EnvVar: bin},
			lookPath: notFound,
			want:     bin,
		},
		{
			name:     "env override missing file",
			env:      map[string]string{MPV.EnvVar: filepath.Join(dir, "nope")},
			lookPath: onPath,
			wantErr:  "file not found",
		},
		{
			name:     "path lookup",
			env:      map[string]string{},
			lookPath: onPath,
			want:     "/usr/bin/mpv" + executableSuffix(),
		},
		{
			name:     "not installed",
			env:      map[string]string{},
			lookPath: notFound,
			wantErr:  MPV.EnvVar,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			getenv := func(k string) string { return tt.env[k] }
			got, err := lookup(MPV, getenv, tt.lookPath)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("lookup() error = %v, want containing %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("lookup() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("lookup() = %q, want %q", got, tt.want)
			}
		})
	}
}
