package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `OwnerAddress = "0x00000000000000000000000000000000000000ee"`+"\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RPCAddress != "127.0.0.1:8645" {
		t.Fatalf("RPCAddress = %q", cfg.RPCAddress)
	}
	if cfg.NetworkName != "otcswap-local" {
		t.Fatalf("NetworkName = %q", cfg.NetworkName)
	}
	if cfg.DataDir == "" {
		t.Fatalf("DataDir not defaulted")
	}
	owner, err := cfg.Owner()
	if err != nil {
		t.Fatalf("owner: %v", err)
	}
	if owner[19] != 0xEE {
		t.Fatalf("owner = %x", owner)
	}
}

func TestLoadRejectsMissingOwner(t *testing.T) {
	path := writeConfig(t, `RPCAddress = "127.0.0.1:9000"`+"\n")
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for missing OwnerAddress")
	}
}

func TestInitialFeeRate(t *testing.T) {
	path := writeConfig(t, `OwnerAddress = "0x00000000000000000000000000000000000000ee"`+"\n"+`FeeRate = "25"`+"\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	rate, ok, err := cfg.InitialFeeRate()
	if err != nil {
		t.Fatalf("fee rate: %v", err)
	}
	if !ok || rate.Int64() != 25 {
		t.Fatalf("rate = %v ok=%v, want 25", rate, ok)
	}

	path = writeConfig(t, `OwnerAddress = "0x00000000000000000000000000000000000000ee"`+"\n"+`FeeRate = "-3"`+"\n")
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for negative FeeRate")
	}
}

func TestLoadRejectsBadOwner(t *testing.T) {
	path := writeConfig(t, `OwnerAddress = "not-an-address"`+"\n")
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for malformed OwnerAddress")
	}
}

func TestLoadCreatesDefaultFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error prompting for OwnerAddress")
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default config not written: %v", err)
	}
}
