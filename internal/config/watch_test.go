package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatchEnvFileDetectsWrites(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	if err := os.WriteFile(envPath, []byte("FOO=bar\n"), 0o644); err != nil {
		t.Fatalf("write .env: %v", err)
	}

	origWD, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	defer os.Chdir(origWD)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changed := make(chan struct{}, 1)
	stop := WatchEnvFile(ctx, func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	defer stop()

	if err := os.WriteFile(envPath, []byte("FOO=baz\n"), 0o644); err != nil {
		t.Fatalf("rewrite .env: %v", err)
	}

	select {
	case <-changed:
	case <-time.After(2 * time.Second):
		t.Fatal("expected onChange to fire after .env was rewritten")
	}
}

func TestWatchEnvFileMissingFileReturnsNoop(t *testing.T) {
	dir := t.TempDir()

	origWD, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	defer os.Chdir(origWD)

	stop := WatchEnvFile(context.Background(), func() {})
	// Should not block or panic even with no .env present.
	stop()
}
