package config

import (
	"crypto/ed25519"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadFaucetConfigAppliesDefaults(t *testing.T) {
	path := writeTempFile(t, "faucet.yml", `
config:
  chain:
    rpc_endpoint: "http://localhost:8080"
`)

	cfg, err := LoadFaucetConfig(path)
	require.NoError(t, err)

	require.Equal(t, "http://localhost:8080", cfg.Chain.RPCEndpoint)
	require.Equal(t, DefaultDripAmount, cfg.Drip.Amount)
	require.Equal(t, DefaultDripUnit, cfg.Drip.Unit)
	require.Equal(t, DefaultVerifyURL, cfg.Recaptcha.VerifyURL)
	require.Equal(t, DefaultRecipientMax, cfg.RateLimit.RecipientMax)
	require.Equal(t, DefaultGlobalMax, cfg.RateLimit.GlobalMax)
	require.Equal(t, DefaultSubmitTimeoutMs, cfg.Chain.SubmitTimeoutMs)
}

func TestLoadFaucetConfigExplicitValues(t *testing.T) {
	path := writeTempFile(t, "faucet.yml", `
config:
  chain:
    rpc_endpoint: "http://node:8080"
    submit_timeout_ms: 1500
    confirm_timeout_ms: 60000
  drip:
    amount: "1_000"
    unit: "MMN"
  rate_limit:
    recipient_max: 2
    recipient_window_sec: 120
    global_max: 50
    global_window_sec: 60
`)

	cfg, err := LoadFaucetConfig(path)
	require.NoError(t, err)

	require.Equal(t, "MMN", cfg.Drip.Unit)
	require.Equal(t, "1000", cfg.DripAmount().Dec())
	require.Equal(t, 2, cfg.RateLimit.RecipientMax)
	require.Equal(t, 1500, cfg.Chain.SubmitTimeoutMs)
}

func TestLoadFaucetConfigRequiresEndpoint(t *testing.T) {
	path := writeTempFile(t, "faucet.yml", `
config:
  drip:
    amount: "10"
`)

	_, err := LoadFaucetConfig(path)
	require.ErrorContains(t, err, "chain.rpc_endpoint is required")
}

func TestValidateRejectsBadAmount(t *testing.T) {
	cfg := &FaucetConfig{
		Chain: ChainConfig{RPCEndpoint: "http://node:8080"},
		Drip:  DripConfig{Amount: "ten"},
	}
	require.ErrorContains(t, cfg.Validate(), "invalid drip.amount")
}

func TestValidateRejectsBypassOutsideTestMode(t *testing.T) {
	cfg := &FaucetConfig{
		Chain:     ChainConfig{RPCEndpoint: "http://node:8080"},
		Drip:      DripConfig{Amount: "10"},
		Recaptcha: RecaptchaConfig{TestMode: false, BypassToken: "secret"},
	}
	require.ErrorContains(t, cfg.Validate(), "bypass_token")

	cfg.Recaptcha.TestMode = true
	require.NoError(t, cfg.Validate())
}

func TestLoadTuningConfig(t *testing.T) {
	path := writeTempFile(t, "tuning.ini", `
[queue]
max_requests = 20

[retry]
max_attempts = 5
base_delay_ms = 100
max_delay_ms = 2000

[retention]
seconds = 300
`)

	tuning, err := LoadTuningConfig(path)
	require.NoError(t, err)
	require.Equal(t, 20, tuning.Queue.MaxRequests)
	require.Equal(t, 5, tuning.Retry.MaxAttempts)
	require.Equal(t, 100, tuning.Retry.BaseDelayMs)
	require.Equal(t, 300, tuning.Retention.Seconds)
}

func TestLoadTuningConfigPartialFileKeepsDefaults(t *testing.T) {
	path := writeTempFile(t, "tuning.ini", `
[queue]
max_requests = 7
`)

	tuning, err := LoadTuningConfig(path)
	require.NoError(t, err)
	require.Equal(t, 7, tuning.Queue.MaxRequests)
	require.Equal(t, DefaultTuning().Retry, tuning.Retry)
	require.Equal(t, DefaultTuning().Retention, tuning.Retention)
}

func TestLoadEd25519PrivKeyFromSeed(t *testing.T) {
	seed := make([]byte, ed25519.SeedSize)
	for i := range seed {
		seed[i] = byte(i)
	}
	path := writeTempFile(t, "key.hex", hex.EncodeToString(seed)+"\n")

	key, err := LoadEd25519PrivKey(path)
	require.NoError(t, err)
	require.Len(t, []byte(key), ed25519.PrivateKeySize)
	require.Equal(t, ed25519.NewKeyFromSeed(seed), key)
}

func TestLoadEd25519PrivKeyFullKey(t *testing.T) {
	full := ed25519.NewKeyFromSeed(make([]byte, ed25519.SeedSize))
	path := writeTempFile(t, "key.hex", hex.EncodeToString(full))

	key, err := LoadEd25519PrivKey(path)
	require.NoError(t, err)
	require.Equal(t, full, key)
}

func TestLoadEd25519PrivKeyRejectsBadLength(t *testing.T) {
	path := writeTempFile(t, "key.hex", "deadbeef")

	_, err := LoadEd25519PrivKey(path)
	require.ErrorContains(t, err, "invalid ed25519 key length")
}
