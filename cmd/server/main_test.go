package main

import (
	"testing"

	"mejapos/backend/internal/config"
)

func TestValidateSecurityConfigRejectsWeakValues(t *testing.T) {
	cases := []struct {
		name string
		cfg  config.Config
	}{
		{"missing secret", config.Config{ManagerPIN: "431907"}},
		{"short secret", config.Config{AuthSecret: "too-short", ManagerPIN: "431907"}},
		{"missing pin", config.Config{AuthSecret: "0123456789abcdef0123456789abcdef"}},
		{"short pin", config.Config{AuthSecret: "0123456789abcdef0123456789abcdef", ManagerPIN: "123"}},
		{"common pin", config.Config{AuthSecret: "0123456789abcdef0123456789abcdef", ManagerPIN: "123456"}},
		{"all same digit", config.Config{AuthSecret: "0123456789abcdef0123456789abcdef", ManagerPIN: "777777"}},
		{"ascending pin", config.Config{AuthSecret: "0123456789abcdef0123456789abcdef", ManagerPIN: "234567"}},
		{"descending pin", config.Config{AuthSecret: "0123456789abcdef0123456789abcdef", ManagerPIN: "876543"}},
	}
	for _, tc := range cases {
		if err := validateSecurityConfig(tc.cfg); err == nil {
			t.Errorf("%s: expected validation error", tc.name)
		}
	}
}

func TestValidateSecurityConfigAcceptsStrongValues(t *testing.T) {
	cfg := config.Config{
		AuthSecret: "0123456789abcdef0123456789abcdef",
		ManagerPIN: "431907",
	}
	if err := validateSecurityConfig(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidatePINStrength(t *testing.T) {
	if err := validatePINStrength("493817"); err != nil {
		t.Fatalf("expected random PIN to pass: %v", err)
	}
	if err := validatePINStrength("112233"); err == nil {
		t.Fatalf("expected known-weak PIN to fail")
	}
}
