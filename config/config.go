package config

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/holiman/uint256"
	"gopkg.in/ini.v1"
	"gopkg.in/yaml.v3"

	"github.com/mezonai/mmn-faucet/logx"
)

// LoadFaucetConfig reads and parses the faucet.yml file
func LoadFaucetConfig(path string) (*FaucetConfig, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config %s: %w", path, err)
	}
	defer file.Close()

	var cfgFile ConfigFile
	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(&cfgFile); err != nil {
		return nil, fmt.Errorf("failed to decode config %s: %w", path, err)
	}

	cfg := &cfgFile.Config
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logx.Info("CONFIG", fmt.Sprintf("faucet config validated: endpoint=%s drip=%s %s", cfg.Chain.RPCEndpoint, cfg.Drip.Amount, cfg.Drip.Unit))
	return cfg, nil
}

func (c *FaucetConfig) applyDefaults() {
	if c.Drip.Amount == "" {
		c.Drip.Amount = DefaultDripAmount
	}
	if c.Drip.Unit == "" {
		c.Drip.Unit = DefaultDripUnit
	}
	if c.Recaptcha.VerifyURL == "" {
		c.Recaptcha.VerifyURL = DefaultVerifyURL
	}
	if c.Chain.SubmitTimeoutMs <= 0 {
		c.Chain.SubmitTimeoutMs = DefaultSubmitTimeoutMs
	}
	if c.Chain.ConfirmTimeoutMs <= 0 {
		c.Chain.ConfirmTimeoutMs = DefaultConfirmTimeoutMs
	}
	if c.RateLimit.RecipientMax <= 0 {
		c.RateLimit.RecipientMax = DefaultRecipientMax
	}
	if c.RateLimit.RecipientWindowSec <= 0 {
		c.RateLimit.RecipientWindowSec = DefaultRecipientWindowSec
	}
	if c.RateLimit.GlobalMax <= 0 {
		c.RateLimit.GlobalMax = DefaultGlobalMax
	}
	if c.RateLimit.GlobalWindowSec <= 0 {
		c.RateLimit.GlobalWindowSec = DefaultGlobalWindowSec
	}
}

// Validate rejects configurations that could never run
func (c *FaucetConfig) Validate() error {
	if c.Chain.RPCEndpoint == "" {
		return fmt.Errorf("chain.rpc_endpoint is required")
	}
	if _, err := uint256.FromDecimal(strings.ReplaceAll(c.Drip.Amount, "_", "")); err != nil {
		return fmt.Errorf("invalid drip.amount %q: %w", c.Drip.Amount, err)
	}
	if !c.Recaptcha.TestMode && c.Recaptcha.BypassToken != "" {
		return fmt.Errorf("recaptcha.bypass_token is only allowed with recaptcha.test_mode")
	}
	return nil
}

// DripAmount parses the configured drip amount, underscores allowed
func (c *FaucetConfig) DripAmount() *uint256.Int {
	amount, _ := uint256.FromDecimal(strings.ReplaceAll(c.Drip.Amount, "_", ""))
	return amount
}

// TuningConfig holds runtime tuning knobs, loaded from an .ini file
type TuningConfig struct {
	Queue     QueueTuning     `ini:"-"`
	Retry     RetryTuning     `ini:"-"`
	Retention RetentionTuning `ini:"-"`
}

type QueueTuning struct {
	MaxRequests int `ini:"max_requests"`
}

type RetryTuning struct {
	MaxAttempts int `ini:"max_attempts"`
	BaseDelayMs int `ini:"base_delay_ms"`
	MaxDelayMs  int `ini:"max_delay_ms"`
}

type RetentionTuning struct {
	Seconds int `ini:"seconds"`
}

// DefaultTuning returns the tuning used when no .ini file is given
func DefaultTuning() *TuningConfig {
	return &TuningConfig{
		Queue:     QueueTuning{MaxRequests: 100},
		Retry:     RetryTuning{MaxAttempts: 3, BaseDelayMs: 200, MaxDelayMs: 5000},
		Retention: RetentionTuning{Seconds: 900},
	}
}

// LoadTuningConfig reads tuning knobs from an .ini file
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cfg, err := ini.Load(path)
	if err != nil {
		return nil, err
	}
	tuning := DefaultTuning()
	if err := cfg.Section("queue").MapTo(&tuning.Queue); err != nil {
		return nil, err
	}
	if err := cfg.Section("retry").MapTo(&tuning.Retry); err != nil {
		return nil, err
	}
	if err := cfg.Section("retention").MapTo(&tuning.Retention); err != nil {
		return nil, err
	}
	return tuning, nil
}

// LoadEd25519PrivKey loads an Ed25519 private key from a file (expects hex encoding)
func LoadEd25519PrivKey(path string) (ed25519.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	key, err := hex.DecodeString(strings.TrimSpace(string(data)))
	if err != nil {
		return nil, err
	}
	switch len(key) {
	case ed25519.PrivateKeySize:
		return ed25519.PrivateKey(key), nil
	case ed25519.SeedSize:
		return ed25519.NewKeyFromSeed(key), nil
	default:
		return nil, fmt.Errorf("invalid ed25519 key length %d", len(key))
	}
}
