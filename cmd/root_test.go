package cmd

import (
	"strings"
	"testing"

	"github.com/spf13/viper"

	"github.com/spigell/job-rotator/internal/filtering"
	"github.com/spigell/job-rotator/internal/platform"
	"github.com/spigell/job-rotator/internal/platform/headhunter"
)

func testRegistry(t *testing.T) *platform.Registry {
	t.Helper()
	r := platform.NewRegistry()
	if err := headhunter.Register(r); err != nil {
		t.Fatalf("register: %v", err)
	}
	return r
}

func validConfig() *Config {
	return &Config{
		Quota:   &QuotaConfig{Backend: backendFile},
		History: &HistoryConfig{Backend: backendCSV},
		Filter:  &filtering.Config{CurrentExperience: filtering.ExperienceUnset, Weights: filtering.DefaultWeights()},
		Platforms: []PlatformConfig{
			{Name: "hh", Kind: headhunter.Kind, DailyLimit: 10},
		},
	}
}

func TestConfigValidate(t *testing.T) {
	disabled := false

	cases := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "unknown adapter", mutate: func(c *Config) { c.Platforms[0].Kind = "linkedin" }, wantErr: "unknown adapter"},
		{name: "zero daily limit", mutate: func(c *Config) { c.Platforms[0].DailyLimit = 0 }, wantErr: "daily-limit must be positive"},
		{name: "duplicate platform", mutate: func(c *Config) { c.Platforms = append(c.Platforms, c.Platforms[0]) }, wantErr: "configured twice"},
		{name: "no enabled platforms", mutate: func(c *Config) { c.Platforms[0].Enabled = &disabled }, wantErr: "no enabled platforms"},
		{name: "weights", mutate: func(c *Config) { c.Filter.Weights.Title = 0.9 }, wantErr: "filter.weights"},
		{name: "disabled dedup", mutate: func(c *Config) { c.Filter.DisabledRules = []string{"dedup"} }, wantErr: "filter.disabled-rules"},
		{name: "quota backend", mutate: func(c *Config) { c.Quota.Backend = "etcd" }, wantErr: "unknown quota backend"},
		{name: "history backend", mutate: func(c *Config) { c.History.Backend = "xlsx" }, wantErr: "unknown history backend"},
		{name: "retry attempts", mutate: func(c *Config) { c.Retry.MaxAttempts = -1 }, wantErr: "retry.max-attempts"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := validConfig()
			c.Retry.MaxAttempts = 3
			tc.mutate(c)

			err := c.validate(testRegistry(t))
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestPlatformConfigKindDefaultsToName(t *testing.T) {
	p := PlatformConfig{Name: "headhunter"}
	if p.kind() != "headhunter" {
		t.Fatalf("expected kind to default to name, got %q", p.kind())
	}
	if !p.enabled() {
		t.Fatalf("platforms are enabled unless disabled explicitly")
	}
}

func TestGetConfigAppliesDefaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(func() {
		viper.Reset()
		setDefaults(viper.GetViper())
	})
	setDefaults(viper.GetViper())
	viper.Set("state-dir", t.TempDir())
	viper.Set("history.backend", backendSQLite)

	config, err := getConfig()
	if err != nil {
		t.Fatalf("getConfig: %v", err)
	}

	if config.Cooldown.Seconds() != 30 {
		t.Fatalf("unexpected cooldown %s", config.Cooldown)
	}
	if config.Filter.CurrentExperience != filtering.ExperienceUnset {
		t.Fatalf("experience rule should be disabled by default, got %d", config.Filter.CurrentExperience)
	}
	if err := config.Filter.Weights.Validate(); err != nil {
		t.Fatalf("default weights are invalid: %v", err)
	}
	if !strings.HasSuffix(config.History.Path, "history.db") {
		t.Fatalf("unexpected history path %q", config.History.Path)
	}
	if config.Quota.Backend != backendFile {
		t.Fatalf("unexpected quota backend %q", config.Quota.Backend)
	}
}
