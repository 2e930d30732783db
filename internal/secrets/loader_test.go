package secrets

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/zalando/go-keyring"
)

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token")
	if err := os.WriteFile(path, []byte("  abc123\n"), 0o600); err != nil {
		t.Fatalf("write token: %v", err)
	}

	got, err := Load(Source{Name: "token", File: path, Value: "inline"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "abc123" {
		t.Fatalf("expected file value to win, got %q", got)
	}
}

func TestLoadEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token")
	if err := os.WriteFile(path, []byte("   "), 0o600); err != nil {
		t.Fatalf("write token: %v", err)
	}

	_, err := Load(Source{Name: "token", File: path})
	if err == nil || !strings.Contains(err.Error(), "is empty") {
		t.Fatalf("expected empty file error, got %v", err)
	}
}

func TestLoadFromKeyring(t *testing.T) {
	keyring.MockInit()

	if err := Store("headhunter", "from-keychain"); err != nil {
		t.Fatalf("store secret: %v", err)
	}

	got, err := Load(Source{Name: "token", KeyringAccount: "headhunter", Value: "inline"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "from-keychain" {
		t.Fatalf("expected keyring value, got %q", got)
	}
}

func TestLoadMissingKeyringEntry(t *testing.T) {
	keyring.MockInit()

	if _, err := Load(Source{Name: "token", KeyringAccount: "missing"}); err == nil {
		t.Fatalf("expected error for missing keyring entry")
	}
}

func TestLoadInlineAndUnset(t *testing.T) {
	got, err := Load(Source{Value: "  inline "})
	if err != nil || got != "inline" {
		t.Fatalf("expected inline value, got %q (%v)", got, err)
	}

	_, err = Load(Source{Name: "dice password"})
	if err == nil || !strings.Contains(err.Error(), "dice password is not configured") {
		t.Fatalf("expected not configured error, got %v", err)
	}
}
