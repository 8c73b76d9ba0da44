package recaptcha

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/mezonai/mmn-faucet/config"
	"github.com/mezonai/mmn-faucet/logx"
)

// Verifier is the external recaptcha check, reduced to a yes/no decision.
type Verifier interface {
	Verify(ctx context.Context, token string) (bool, error)
}

// HTTPVerifier verifies tokens against the recaptcha siteverify endpoint.
type HTTPVerifier struct {
	secret    string
	verifyURL string
	client    *resty.Client
}

type siteVerifyResponse struct {
	Success    bool     `json:"success"`
	Hostname   string   `json:"hostname"`
	ErrorCodes []string `json:"error-codes"`
}

// NewHTTPVerifier builds the production verifier.
func NewHTTPVerifier(secret, verifyURL string) *HTTPVerifier {
	return &HTTPVerifier{
		secret:    secret,
		verifyURL: verifyURL,
		client:    resty.New().SetTimeout(10 * time.Second),
	}
}

// Verify posts the token to the verifier and returns its verdict.
func (v *HTTPVerifier) Verify(ctx context.Context, token string) (bool, error) {
	var result siteVerifyResponse
	resp, err := v.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"secret":   v.secret,
			"response": token,
		}).
		SetResult(&result).
		Post(v.verifyURL)
	if err != nil {
		return false, fmt.Errorf("recaptcha verify request failed: %w", err)
	}
	if resp.IsError() {
		return false, fmt.Errorf("recaptcha verify returned status %d", resp.StatusCode())
	}
	if !result.Success && len(result.ErrorCodes) > 0 {
		logx.Debug("RECAPTCHA", "verification rejected: ", result.ErrorCodes)
	}
	return result.Success, nil
}

// Gate is the intake-side recaptcha decision. The bypass token is honored
// only when the gate was built from a test-mode config; in production the
// token value alone can never trigger it.
type Gate struct {
	verifier    Verifier
	testMode    bool
	bypassToken string
}

// NewGate builds a gate from config, using the HTTP verifier.
func NewGate(cfg config.RecaptchaConfig) *Gate {
	return NewGateWithVerifier(cfg, NewHTTPVerifier(cfg.Secret, cfg.VerifyURL))
}

// NewGateWithVerifier builds a gate around an explicit verifier.
func NewGateWithVerifier(cfg config.RecaptchaConfig, verifier Verifier) *Gate {
	return &Gate{
		verifier:    verifier,
		testMode:    cfg.TestMode,
		bypassToken: cfg.BypassToken,
	}
}

// Check returns whether the token passes the gate.
func (g *Gate) Check(ctx context.Context, token string) (bool, error) {
	if g.testMode && g.bypassToken != "" && token == g.bypassToken {
		return true, nil
	}
	return g.verifier.Verify(ctx, token)
}
