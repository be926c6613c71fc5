package config

import (
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	ethcommon "github.com/ethereum/go-ethereum/common"
)

type Config struct {
	RPCAddress   string `toml:"RPCAddress"`
	DataDir      string `toml:"DataDir"`
	OwnerAddress string `toml:"OwnerAddress"`
	NetworkName  string `toml:"NetworkName"`
	Environment  string `toml:"Environment"`
	FeeRate      string `toml:"FeeRate,omitempty"`
}

// Load loads the configuration from the given path.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	applyDefaults(path, cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that required fields parse. A missing owner address is
// rejected because the admin surface would be unusable.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.RPCAddress) == "" {
		return fmt.Errorf("RPCAddress must not be empty")
	}
	owner := strings.TrimSpace(c.OwnerAddress)
	if owner == "" {
		return fmt.Errorf("OwnerAddress must be set")
	}
	if !ethcommon.IsHexAddress(owner) {
		return fmt.Errorf("OwnerAddress %q is not a valid hex address", c.OwnerAddress)
	}
	if _, _, err := c.InitialFeeRate(); err != nil {
		return err
	}
	return nil
}

// InitialFeeRate returns the fee rate applied at startup, when one is
// configured. The boolean reports whether the field was set.
func (c *Config) InitialFeeRate() (*big.Int, bool, error) {
	raw := strings.TrimSpace(c.FeeRate)
	if raw == "" {
		return nil, false, nil
	}
	rate, ok := new(big.Int).SetString(raw, 10)
	if !ok || rate.Sign() < 0 {
		return nil, false, fmt.Errorf("FeeRate %q must be a non-negative integer", c.FeeRate)
	}
	return rate, true, nil
}

// Owner returns the configured owner address.
func (c *Config) Owner() ([20]byte, error) {
	owner := strings.TrimSpace(c.OwnerAddress)
	if !ethcommon.IsHexAddress(owner) {
		return [20]byte{}, fmt.Errorf("OwnerAddress %q is not a valid hex address", c.OwnerAddress)
	}
	return ethcommon.HexToAddress(owner), nil
}

func applyDefaults(path string, cfg *Config) {
	if strings.TrimSpace(cfg.RPCAddress) == "" {
		cfg.RPCAddress = "127.0.0.1:8645"
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = filepath.Join(filepath.Dir(path), "data")
	}
	if strings.TrimSpace(cfg.NetworkName) == "" {
		cfg.NetworkName = "otcswap-local"
	}
	if strings.TrimSpace(cfg.Environment) == "" {
		cfg.Environment = "dev"
	}
}

// createDefault creates and saves a default configuration file. The owner
// address is left empty on purpose so the operator has to fill it in.
func createDefault(path string) (*Config, error) {
	cfg := &Config{}
	applyDefaults(path, cfg)
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, fmt.Errorf("wrote default config to %s; set OwnerAddress and restart", path)
}

func persist(path string, cfg *Config) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(cfg)
}
