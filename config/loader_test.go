// SPDX-License-Identifier: LGPL-3.0-or-later

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFilesFallsBackToDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(LoaderOptions{
		ConfigDir:      dir,
		Environment:    "development",
		SkipValidation: true,
	})
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Environment != "development" {
		t.Errorf("Environment = %q, want %q", cfg.Environment, "development")
	}
	if cfg.Network.Transport != "tcp" {
		t.Errorf("Network.Transport = %q, want tcp default", cfg.Network.Transport)
	}
}

func TestLoadEnvironmentSpecificFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "production.yaml")
	body := "agent:\n  id: bob-00000002\npolicy:\n  path: /usr/local/bin/wish-policy\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(LoaderOptions{ConfigDir: dir, Environment: "production"})
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Agent.ID != "bob-00000002" {
		t.Errorf("Agent.ID = %q, want bob-00000002", cfg.Agent.ID)
	}
	if cfg.Policy.Path != "/usr/local/bin/wish-policy" {
		t.Errorf("Policy.Path = %q, want /usr/local/bin/wish-policy", cfg.Policy.Path)
	}
}

func TestLoadMissingAgentIDFailsValidation(t *testing.T) {
	dir := t.TempDir()
	_, err := Load(LoaderOptions{ConfigDir: dir, Environment: "development"})
	if err == nil {
		t.Fatal("expected validation error for missing agent id")
	}
}

func TestEnvironmentOverridesTakePriority(t *testing.T) {
	t.Setenv("WISH_AGENT_ID", "override-00000099")
	dir := t.TempDir()
	cfg, err := Load(LoaderOptions{ConfigDir: dir, Environment: "development", SkipValidation: true})
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Agent.ID != "override-00000099" {
		t.Errorf("Agent.ID = %q, want env override", cfg.Agent.ID)
	}
}
