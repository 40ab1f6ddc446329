package config

import "testing"

func TestDefaultProducesUsableConfig(t *testing.T) {
	cfg, err := Default()
	if err != nil {
		t.Fatalf("Default: %v", err)
	}
	if cfg.ThreadCount < 1 {
		t.Fatalf("ThreadCount = %d, want >= 1", cfg.ThreadCount)
	}
	if cfg.WorkRoot == "" {
		t.Fatalf("WorkRoot should not be empty")
	}
}

func TestLevelDirCreatesDirectory(t *testing.T) {
	cfg := &Config{WorkRoot: t.TempDir()}
	dir, err := cfg.LevelDir(32)
	if err != nil {
		t.Fatalf("LevelDir: %v", err)
	}
	if dir == "" {
		t.Fatal("LevelDir returned empty path")
	}
}
