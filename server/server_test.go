package server

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/mezonai/mmn-faucet/chain"
	"github.com/mezonai/mmn-faucet/common"
	"github.com/mezonai/mmn-faucet/config"
	"github.com/mezonai/mmn-faucet/faucet"
	"github.com/mezonai/mmn-faucet/jsonx"
	"github.com/mezonai/mmn-faucet/ratelimit"
	"github.com/mezonai/mmn-faucet/recaptcha"
	"github.com/mezonai/mmn-faucet/types"
)

const testBypassToken = "valid-test-token"

type fakeGateway struct{}

func (fakeGateway) GetBalance(_ context.Context, _ string) (*uint256.Int, error) {
	return uint256.NewInt(10000), nil
}

func (fakeGateway) GetAccountNonce(_ context.Context, _ string) (uint64, error) {
	return 0, nil
}

func (fakeGateway) SubmitTransfer(_ context.Context, tx *chain.SignedTransfer) (string, error) {
	return fmt.Sprintf("0xhash%d", tx.Tx.Nonce), nil
}

func (fakeGateway) AwaitInclusion(_ context.Context, _ string, _ time.Duration) error {
	return nil
}

// denyVerifier fails every token that is not the bypass.
type denyVerifier struct{}

func (denyVerifier) Verify(_ context.Context, _ string) (bool, error) { return false, nil }

type nullStore struct{}

func (nullStore) Put(*types.SubmissionRecord) error                 { return nil }
func (nullStore) Get(string) (*types.SubmissionRecord, error)       { return nil, nil }
func (nullStore) GetByTxHash(string) (*types.SubmissionRecord, error) { return nil, nil }
func (nullStore) List(int) ([]*types.SubmissionRecord, error)       { return nil, nil }
func (nullStore) MustClose()                                        {}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	cfg := &config.FaucetConfig{
		Chain:     config.ChainConfig{RPCEndpoint: "stub", SubmitTimeoutMs: 500, ConfirmTimeoutMs: 500},
		Drip:      config.DripConfig{Amount: "10", Unit: "UNIT"},
		Recaptcha: config.RecaptchaConfig{TestMode: true, BypassToken: testBypassToken},
	}
	limiter := ratelimit.NewDripLimiter(&ratelimit.DripLimiterConfig{
		RecipientMax:    1,
		RecipientWindow: time.Hour,
		GlobalMax:       100,
		GlobalWindow:    time.Hour,
		CleanupInterval: time.Minute,
	})
	signer, err := chain.NewSigner(ed25519.NewKeyFromSeed(make([]byte, ed25519.SeedSize)))
	require.NoError(t, err)

	gate := recaptcha.NewGateWithVerifier(cfg.Recaptcha, denyVerifier{})
	d := faucet.NewDispatcher(cfg, nil, fakeGateway{}, signer, limiter, gate, nullStore{})
	d.Start(context.Background())
	t.Cleanup(func() {
		d.Stop()
		limiter.Stop()
	})

	srv := NewServer("127.0.0.1:0", d)
	ts := httptest.NewServer(srv.httpServer.Handler)
	t.Cleanup(ts.Close)
	return ts
}

func testAddress(n byte) string {
	var pub [32]byte
	pub[31] = n
	return common.EncodeBytesToBase58(pub[:])
}

func postDrip(t *testing.T, ts *httptest.Server, body DripRequestBody) *http.Response {
	t.Helper()
	payload, err := jsonx.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(ts.URL+"/drip", "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	return resp
}

func decodeJSON(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, jsonx.NewDecoder(resp.Body).Decode(v))
}

func TestDripEndpointReturnsHash(t *testing.T) {
	ts := newTestServer(t)

	resp := postDrip(t, ts, DripRequestBody{Address: testAddress(1), Recaptcha: testBypassToken})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out DripResponse
	decodeJSON(t, resp, &out)
	require.NotEmpty(t, out.Hash)
}

func TestDripEndpointRateLimited(t *testing.T) {
	ts := newTestServer(t)
	addr := testAddress(2)

	resp := postDrip(t, ts, DripRequestBody{Address: addr, Recaptcha: testBypassToken})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = postDrip(t, ts, DripRequestBody{Address: addr, Recaptcha: testBypassToken})
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)

	var out ErrorResponse
	decodeJSON(t, resp, &out)
	require.Equal(t, "rate_limited", out.Code)
}

func TestDripEndpointInvalidAddress(t *testing.T) {
	ts := newTestServer(t)

	resp := postDrip(t, ts, DripRequestBody{Address: "nope", Recaptcha: testBypassToken})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var out ErrorResponse
	decodeJSON(t, resp, &out)
	require.Equal(t, "invalid_address", out.Code)
}

func TestDripEndpointRecaptchaRequired(t *testing.T) {
	ts := newTestServer(t)

	// test mode only bypasses for the exact configured token
	resp := postDrip(t, ts, DripRequestBody{Address: testAddress(3), Recaptcha: "wrong"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var out ErrorResponse
	decodeJSON(t, resp, &out)
	require.Equal(t, "recaptcha_failed", out.Code)
}

func TestDripEndpointMalformedBody(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Post(ts.URL+"/drip", "application/json", bytes.NewReader([]byte("{not json")))
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var out ErrorResponse
	decodeJSON(t, resp, &out)
	require.Equal(t, "invalid_request", out.Code)
}

func TestStatusEndpointUnknownRequest(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/drip/unknown-id")
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	var out ErrorResponse
	decodeJSON(t, resp, &out)
	require.Equal(t, "request_not_found", out.Code)
}

func TestHealthEndpoint(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out map[string]string
	decodeJSON(t, resp, &out)
	require.Equal(t, "ok", out["status"])
}
