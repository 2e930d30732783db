package secrets

import (
	"fmt"
	"os"
	"strings"

	"github.com/zalando/go-keyring"
)

// KeyringService groups the application's secrets in the OS keychain.
const KeyringService = "job-rotator"

// Source describes how to load a secret value.
type Source struct {
	// Name is used in error messages to give more context about the secret.
	Name string
	// Value is an inline secret value provided via configuration or flags.
	Value string
	// File points to a file containing the secret value. When set it takes
	// precedence over every other source.
	File string
	// KeyringAccount names an entry under KeyringService in the OS keychain.
	// It is consulted when File is unset.
	KeyringAccount string
}

// Load returns the resolved secret value from the provided source. File wins
// over KeyringAccount, which wins over Value. The returned secret is always
// trimmed. An error is returned when no source contains a usable secret.
func Load(src Source) (string, error) {
	name := strings.TrimSpace(src.Name)
	if name == "" {
		name = "secret"
	}

	file := strings.TrimSpace(src.File)
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("reading %s from file %q: %w", name, file, err)
		}
		secret := strings.TrimSpace(string(data))
		if secret == "" {
			return "", fmt.Errorf("%s file %q is empty", name, file)
		}
		return secret, nil
	}

	account := strings.TrimSpace(src.KeyringAccount)
	if account != "" {
		secret, err := keyring.Get(KeyringService, account)
		if err != nil {
			return "", fmt.Errorf("reading %s from keyring account %q: %w", name, account, err)
		}
		if secret = strings.TrimSpace(secret); secret == "" {
			return "", fmt.Errorf("%s keyring entry %q is empty", name, account)
		}
		return secret, nil
	}

	secret := strings.TrimSpace(src.Value)
	if secret == "" {
		return "", fmt.Errorf("%s is not configured", name)
	}

	return secret, nil
}

// Store saves a secret in the OS keychain under KeyringService.
func Store(account, secret string) error {
	account = strings.TrimSpace(account)
	if account == "" {
		return fmt.Errorf("keyring account name is empty")
	}
	if strings.TrimSpace(secret) == "" {
		return fmt.Errorf("secret is empty")
	}
	return keyring.Set(KeyringService, account, secret)
}
