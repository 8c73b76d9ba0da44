package config

// ConfigFile is the top-level wrapper of faucet.yml
type ConfigFile struct {
	Config FaucetConfig `yaml:"config"`
}

// FaucetConfig holds the service configuration loaded from faucet.yml
type FaucetConfig struct {
	Chain     ChainConfig     `yaml:"chain"`
	Drip      DripConfig      `yaml:"drip"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Recaptcha RecaptchaConfig `yaml:"recaptcha"`
	Server    ServerConfig    `yaml:"server"`
	Bot       BotConfig       `yaml:"bot"`
	Store     StoreConfig     `yaml:"store"`
}

// ChainConfig describes how to reach the chain node
type ChainConfig struct {
	RPCEndpoint      string `yaml:"rpc_endpoint"`
	SubmitTimeoutMs  int    `yaml:"submit_timeout_ms"`
	ConfirmTimeoutMs int    `yaml:"confirm_timeout_ms"`
}

// DripConfig describes the funding account and the fixed drip
type DripConfig struct {
	KeyPath string `yaml:"key_path"`
	Amount  string `yaml:"amount"`
	Unit    string `yaml:"unit"`
}

// RateLimitConfig holds the per-recipient and global drip ceilings
type RateLimitConfig struct {
	RecipientMax       int `yaml:"recipient_max"`
	RecipientWindowSec int `yaml:"recipient_window_sec"`
	GlobalMax          int `yaml:"global_max"`
	GlobalWindowSec    int `yaml:"global_window_sec"`
}

// RecaptchaConfig configures the external verifier. BypassToken is honored
// only when TestMode is set; production configs leave TestMode false and the
// token value alone can never trigger the bypass.
type RecaptchaConfig struct {
	Secret      string `yaml:"secret"`
	VerifyURL   string `yaml:"verify_url"`
	TestMode    bool   `yaml:"test_mode"`
	BypassToken string `yaml:"bypass_token"`
}

// ServerConfig configures the HTTP front-end
type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

// BotConfig configures the chat front-end
type BotConfig struct {
	ReplyTimeoutSec int `yaml:"reply_timeout_sec"`
}

// StoreConfig configures drip history persistence
type StoreConfig struct {
	DataDir string `yaml:"data_dir"`
}
