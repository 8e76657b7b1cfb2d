// Package config_test tests configuration validation and branch helpers.
package config_test

import (
	"testing"

	"github.com/edgard/intakebot/internal/config"
)

func validConfig() *config.Config {
	return &config.Config{
		Log:      config.LogConfig{Level: "info"},
		Telegram: config.TelegramConfig{Token: "123456:test-token"},
		Branches: []config.BranchConfig{
			{Name: "head office", ChatID: -1000, Email: "head@example.com"},
			{Name: "downtown", ChatID: -1001},
		},
		Database: config.DatabaseConfig{Path: "storage.db"},
		Report:   config.ReportConfig{Dir: "."},
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr bool
	}{
		{
			name:   "valid",
			mutate: func(*config.Config) {},
		},
		{
			name:    "missing token",
			mutate:  func(c *config.Config) { c.Telegram.Token = "" },
			wantErr: true,
		},
		{
			name:    "no branches",
			mutate:  func(c *config.Config) { c.Branches = nil },
			wantErr: true,
		},
		{
			name: "duplicate branch names",
			mutate: func(c *config.Config) {
				c.Branches = append(c.Branches, config.BranchConfig{Name: "downtown", ChatID: -1002})
			},
			wantErr: true,
		},
		{
			name: "underscore in branch name",
			mutate: func(c *config.Config) {
				c.Branches[1].Name = "down_town"
			},
			wantErr: true,
		},
		{
			name: "bad branch email",
			mutate: func(c *config.Config) {
				c.Branches[0].Email = "not-an-address"
			},
			wantErr: true,
		},
		{
			name:    "bad log level",
			mutate:  func(c *config.Config) { c.Log.Level = "verbose" },
			wantErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			cfg := validConfig()
			tc.mutate(cfg)

			err := cfg.Validate()
			if tc.wantErr && err == nil {
				t.Error("Validate succeeded, want error")
			}
			if !tc.wantErr && err != nil {
				t.Errorf("Validate failed: %v", err)
			}
		})
	}
}

func TestBranchHelpers(t *testing.T) {
	t.Parallel()

	cfg := validConfig()

	if got := cfg.HeadOffice().Name; got != "head office" {
		t.Errorf("HeadOffice().Name = %q, want the first branch", got)
	}

	if b, ok := cfg.FindBranch("downtown"); !ok || b.ChatID != -1001 {
		t.Errorf("FindBranch(downtown) = %+v, %v", b, ok)
	}
	if _, ok := cfg.FindBranch("atlantis"); ok {
		t.Error("FindBranch(atlantis) = ok, want miss")
	}

	if !cfg.IsStaffChat(-1000) || !cfg.IsStaffChat(-1001) {
		t.Error("IsStaffChat rejected a configured branch channel")
	}
	if cfg.IsStaffChat(42) {
		t.Error("IsStaffChat accepted a client chat id")
	}
}
