package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/kristofer/sind/internal/config"
	"github.com/kristofer/sind/pkg/value"
)

func TestLoadOrCreateStoreNoPathGivesEmptyStore(t *testing.T) {
	store, err := loadOrCreateStore(config.Config{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store.Count() != 0 {
		t.Fatalf("expected a fresh empty store, got %d items", store.Count())
	}
}

func TestLoadOrCreateStoreMissingFileGivesEmptyStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "does-not-exist.store")
	store, err := loadOrCreateStore(config.Config{Itemstore: path})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store.Count() != 0 {
		t.Fatalf("expected a fresh empty store for a missing file, got %d items", store.Count())
	}
}

func TestPersistFinalThenReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "itemstore.bin")
	cfg := config.Config{Itemstore: path}

	store, err := loadOrCreateStore(cfg)
	if err != nil {
		t.Fatalf("loadOrCreateStore: %v", err)
	}
	if _, err := store.InsertValueItem("greeting", value.FromString("hi")); err != nil {
		t.Fatalf("InsertValueItem: %v", err)
	}

	log := testLog()
	if err := persistFinal(cfg, store, log); err != nil {
		t.Fatalf("persistFinal: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected persisted file at %s: %v", path, err)
	}

	reloaded, err := loadOrCreateStore(cfg)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	it, err := reloaded.Find("greeting")
	if err != nil {
		t.Fatalf("expected reloaded item to be found: %v", err)
	}
	if it.Val.S != "hi" {
		t.Fatalf("expected reloaded value %q, got %q", "hi", it.Val.S)
	}
}

func TestPersistFinalNoPathIsNoop(t *testing.T) {
	store, _ := loadOrCreateStore(config.Config{})
	if err := persistFinal(config.Config{}, store, testLog()); err != nil {
		t.Fatalf("expected no-op persistFinal to succeed, got %v", err)
	}
}

func TestBuildLoggerFallsBackToDefaultOnBadPath(t *testing.T) {
	log := buildLogger(config.Config{Log: filepath.Join(t.TempDir(), "nested", "dir", "that-cannot-be-created-as-a-file")})
	if log == nil {
		t.Fatal("expected buildLogger to never return nil")
	}
}

func TestBuildLoggerWritesToFile(t *testing.T) {
	origStdout, origStderr := os.Stdout, os.Stderr
	t.Cleanup(func() { os.Stdout, os.Stderr = origStdout, origStderr })

	dir := t.TempDir()
	base := filepath.Join(dir, "session")
	log := buildLogger(config.Config{Log: base})
	log.Info("hello")

	if _, err := os.Stat(base + ".log"); err != nil {
		t.Fatalf("expected log file %s.log to exist: %v", base, err)
	}
	if _, err := os.Stat(base + ".err"); err != nil {
		t.Fatalf("expected error log file %s.err to exist: %v", base, err)
	}
	if os.Stdout.Name() != base+".log" {
		t.Fatalf("expected process stdout redirected to %s.log, got %s", base, os.Stdout.Name())
	}
	if os.Stderr.Name() != base+".err" {
		t.Fatalf("expected process stderr redirected to %s.err, got %s", base, os.Stderr.Name())
	}
}
