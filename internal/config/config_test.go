package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFindConfig_Explicit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.yaml")
	os.WriteFile(path, []byte("listen:\n  port: 9999\n"), 0600)

	got, err := FindConfig(path)
	if err != nil {
		t.Fatalf("FindConfig(%q) error: %v", path, err)
	}
	if got != path {
		t.Errorf("FindConfig(%q) = %q, want %q", path, got, path)
	}
}

func TestFindConfig_ExplicitMissing(t *testing.T) {
	_, err := FindConfig("/nonexistent/config.yaml")
	if err == nil {
		t.Fatal("FindConfig with missing explicit path should error")
	}
}

func TestFindConfig_SearchPath(t *testing.T) {
	dir := t.TempDir()
	orig := searchPathsFunc
	searchPathsFunc = func() []string {
		return []string{filepath.Join(dir, "config.yaml")}
	}
	defer func() { searchPathsFunc = orig }()

	_, err := FindConfig("")
	if err == nil {
		t.Fatal("FindConfig(\"\") with no config files should error")
	}
}

func TestFindConfig_CWD(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	os.WriteFile(path, []byte("listen:\n  port: 8080\n"), 0600)

	orig, _ := os.Getwd()
	os.Chdir(dir)
	defer os.Chdir(orig)

	got, err := FindConfig("")
	if err != nil {
		t.Fatalf("FindConfig(\"\") error: %v", err)
	}
	if got != "config.yaml" {
		t.Errorf("FindConfig(\"\") = %q, want %q", got, "config.yaml")
	}
}

func TestLoad_ExpandsEnvVars(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	os.WriteFile(path, []byte("accounts:\n  - username: alice\n    address: imap.example.org\n    password: ${MAILSYNC_TEST_PASSWORD}\n"), 0600)
	os.Setenv("MAILSYNC_TEST_PASSWORD", "secret123")
	defer os.Unsetenv("MAILSYNC_TEST_PASSWORD")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if len(cfg.Accounts) != 1 || cfg.Accounts[0].Password != "secret123" {
		t.Errorf("accounts = %+v, want password secret123", cfg.Accounts)
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := Default()
	if cfg.Listen.Port != 9001 {
		t.Errorf("Listen.Port = %d, want 9001", cfg.Listen.Port)
	}
	if cfg.Listen.Address != "127.0.0.1" {
		t.Errorf("Listen.Address = %q, want 127.0.0.1", cfg.Listen.Address)
	}
	if cfg.Store.Path != "./mailsync.db" {
		t.Errorf("Store.Path = %q, want ./mailsync.db", cfg.Store.Path)
	}
}

func TestApplyDefaults_AccountPort(t *testing.T) {
	cfg := Default()
	cfg.Accounts = []AccountConfig{{Username: "alice", Address: "imap.example.org"}}
	cfg.applyDefaults()
	if cfg.Accounts[0].Port != 993 {
		t.Errorf("account port = %d, want 993", cfg.Accounts[0].Port)
	}
}

func TestValidate_ListenPortOutOfRange(t *testing.T) {
	cfg := Default()
	cfg.Listen.Port = 70000
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for out-of-range listen port")
	}
}

func TestValidate_AccountMissingUsername(t *testing.T) {
	cfg := Default()
	cfg.Accounts = []AccountConfig{{Address: "imap.example.org"}}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for missing username")
	}
}

func TestValidate_AccountMissingAddress(t *testing.T) {
	cfg := Default()
	cfg.Accounts = []AccountConfig{{Username: "alice"}}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for missing address")
	}
}

func TestValidate_LogLevel(t *testing.T) {
	cfg := Default()
	cfg.LogLevel = "bogus"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for invalid log level")
	}
}
