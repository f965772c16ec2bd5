package config

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestLoadAppliesDefaults(t *testing.T) {
	v := NewViper()
	v.Set("auth.signing_secret", "secret")
	v.Set("openai.api_key", "key")

	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.HTTPAddress != defaultHTTPAddress {
		t.Fatalf("unexpected http address %q", cfg.HTTPAddress)
	}
	if cfg.LeaseDuration != 10*time.Second {
		t.Fatalf("unexpected lease duration %s", cfg.LeaseDuration)
	}
	if cfg.DailyAttemptCap != 5 {
		t.Fatalf("unexpected attempt cap %d", cfg.DailyAttemptCap)
	}
	if cfg.OpenAIModel != defaultOpenAIModel {
		t.Fatalf("unexpected model %q", cfg.OpenAIModel)
	}
}

func TestLoadReadsEnvironmentOverrides(t *testing.T) {
	t.Setenv("TRACKER_LEASE_DURATION", "30s")
	t.Setenv("TRACKER_DAILY_ATTEMPT_CAP", "3")

	v := NewViper()
	v.Set("auth.signing_secret", "secret")
	v.Set("openai.api_key", "key")

	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.LeaseDuration != 30*time.Second {
		t.Fatalf("expected env lease duration, got %s", cfg.LeaseDuration)
	}
	if cfg.DailyAttemptCap != 3 {
		t.Fatalf("expected env attempt cap, got %d", cfg.DailyAttemptCap)
	}
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name    string
		prepare func(v *viper.Viper)
		wantErr string
	}{
		{
			name: "missing-signing-secret",
			prepare: func(v *viper.Viper) {
				v.Set("openai.api_key", "key")
			},
			wantErr: "auth.signing_secret",
		},
		{
			name: "missing-openai-key",
			prepare: func(v *viper.Viper) {
				v.Set("auth.signing_secret", "secret")
			},
			wantErr: "openai.api_key",
		},
		{
			name: "non-positive-cap",
			prepare: func(v *viper.Viper) {
				v.Set("auth.signing_secret", "secret")
				v.Set("openai.api_key", "key")
				v.Set("daily.attempt_cap", 0)
			},
			wantErr: "daily.attempt_cap",
		},
		{
			name: "non-positive-lease",
			prepare: func(v *viper.Viper) {
				v.Set("auth.signing_secret", "secret")
				v.Set("openai.api_key", "key")
				v.Set("lease.duration", "0s")
			},
			wantErr: "lease.duration",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewViper()
			tt.prepare(v)
			_, err := Load(v)
			if err == nil {
				t.Fatalf("expected an error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error mentioning %q, got %v", tt.wantErr, err)
			}
		})
	}
}
