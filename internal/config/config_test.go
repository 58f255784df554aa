package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const sample = `
log_level: debug
attachment_dir: /srv/attachments
printer:
  host: smtp.example.com
  port: 465
  use_tls: true
  print_to: printer@hpeprint.example.com
accounts:
  - name: school
    protocol: gmail
    from_filter: teacher@school.example.com
    gmail:
      client_id: id
      client_secret: secret
      refresh_token: ${TEST_GAP_REFRESH_TOKEN}
  - name: archive
    protocol: mbox
    mbox_path: takeout.mbox
    require_attachment: false
    process_days: 30
`

func TestParse(t *testing.T) {
	t.Setenv("TEST_GAP_REFRESH_TOKEN", "rt-123")

	cfg, err := Parse([]byte(sample))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if cfg.LogLevel != "debug" || cfg.AttachmentDir != "/srv/attachments" {
		t.Errorf("top level = %+v", cfg)
	}
	if cfg.DataDir != "data" || cfg.Concurrency != 4 {
		t.Errorf("defaults not applied: data_dir=%q concurrency=%d", cfg.DataDir, cfg.Concurrency)
	}
	if len(cfg.Quote.MarkerPhrases) == 0 || len(cfg.Quote.HeaderLabels) == 0 {
		t.Error("default quote rules not applied")
	}
	if cfg.Printer == nil || cfg.Printer.PrintTo != "printer@hpeprint.example.com" {
		t.Errorf("printer = %+v", cfg.Printer)
	}

	school := cfg.Accounts[0]
	if school.Gmail.RefreshToken != "rt-123" {
		t.Errorf("refresh token = %q, want expanded from env", school.Gmail.RefreshToken)
	}
	if !school.AttachmentRequired() || school.GetMaxResults() != 10 || school.GetProcessDays() != 7 {
		t.Errorf("school defaults wrong: %+v", school)
	}
	if school.CheckInterval() != 60*time.Second {
		t.Errorf("CheckInterval() = %v", school.CheckInterval())
	}

	archive := cfg.Accounts[1]
	if archive.AttachmentRequired() {
		t.Error("require_attachment: false not honoured")
	}
	if archive.GetProcessDays() != 30 {
		t.Errorf("GetProcessDays() = %d", archive.GetProcessDays())
	}
}

func TestParse_DollarInSecrets(t *testing.T) {
	t.Setenv("HOME", "/home/someone")
	t.Setenv("TEST_GAP_USER", "me@example.com")

	cfg, err := Parse([]byte(`
accounts:
  - name: mail
    protocol: imap
    host: imap.example.com
    port: 993
    username: ${TEST_GAP_USER}
    password: 'pa$$w0rd$HOME1'
    gmail:
      refresh_token: "1//0g$abc${TEST_GAP_UNSET}"
`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	acct := cfg.Accounts[0]
	if acct.Password != "pa$$w0rd$HOME1" {
		t.Errorf("password = %q, want it kept verbatim", acct.Password)
	}
	if acct.Username != "me@example.com" {
		t.Errorf("username = %q, want ${VAR} expanded", acct.Username)
	}
	if acct.Gmail.RefreshToken != "1//0g$abc" {
		t.Errorf("refresh token = %q, want bare $ kept and unset ${VAR} empty", acct.Gmail.RefreshToken)
	}
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("TEST_GAP_A", "alpha")
	tests := []struct {
		in   string
		want string
	}{
		{"${TEST_GAP_A}", "alpha"},
		{"x-${TEST_GAP_A}-y", "x-alpha-y"},
		{"$TEST_GAP_A", "$TEST_GAP_A"},
		{"$$", "$$"},
		{"${1BAD}", "${1BAD}"},
		{"${TEST_GAP_A", "${TEST_GAP_A"},
	}
	for _, tt := range tests {
		if got := string(expandEnv([]byte(tt.in))); got != tt.want {
			t.Errorf("expandEnv(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"no accounts", "log_level: info\n", "at least one account"},
		{"unknown protocol", "accounts:\n  - name: a\n    protocol: ews\n", "protocol must be"},
		{"missing name", "accounts:\n  - protocol: mbox\n    mbox_path: x\n", "name is required"},
		{"duplicate name", "accounts:\n  - {name: a, protocol: mbox, mbox_path: x}\n  - {name: a, protocol: mbox, mbox_path: y}\n", "duplicate name"},
		{"imap without host", "accounts:\n  - {name: a, protocol: imap, port: 993}\n", "host is required"},
		{"pop3 without port", "accounts:\n  - {name: a, protocol: pop3, host: h}\n", "port is required"},
		{"gmail without token", "accounts:\n  - {name: a, protocol: gmail, gmail: {client_id: i, client_secret: s}}\n", "refresh_token"},
		{"mbox without path", "accounts:\n  - {name: a, protocol: mbox}\n", "mbox_path is required"},
		{"printer without recipient", "printer: {host: h, port: 25}\naccounts:\n  - {name: a, protocol: mbox, mbox_path: x}\n", "print_to is required"},
		{"bad yaml", "accounts: [\n", "parse config"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Parse() error = %v, want containing %q", err, tt.want)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	chdir(t, t.TempDir())
	if _, err := Load("does-not-exist.yaml"); err == nil {
		t.Error("Load() should fail for a missing file")
	}
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	t.Setenv("TEST_GAP_MBOX", "")
	os.Unsetenv("TEST_GAP_MBOX")

	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("TEST_GAP_MBOX=export.mbox\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfgPath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(cfgPath, []byte("accounts:\n  - {name: a, protocol: mbox, mbox_path: \"${TEST_GAP_MBOX}\"}\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Accounts[0].MboxPath != "export.mbox" {
		t.Errorf("mbox_path = %q, want value from .env", cfg.Accounts[0].MboxPath)
	}
}

// chdir changes the working directory for the duration of the test,
// restoring it on cleanup (equivalent of testing.T.Chdir from Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(old); err != nil {
			t.Fatal(err)
		}
	})
}
