package chain

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/mezonai/mmn-faucet/common"
)

func newTestSigner(t *testing.T) *Signer {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	signer, err := NewSigner(priv)
	require.NoError(t, err)
	return signer
}

func TestSignerAddressIsBase58PublicKey(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	signer, err := NewSigner(priv)
	require.NoError(t, err)
	require.Equal(t, common.EncodeBytesToBase58(pub), signer.Address())
}

func TestTransferSerializeFormat(t *testing.T) {
	tx := &Transfer{
		Type:      TxTypeTransferByKey,
		Sender:    "senderAddr",
		Recipient: "recipientAddr",
		Amount:    uint256.NewInt(10),
		Nonce:     7,
		ExtraInfo: TransferExtraInfoDrip,
	}

	want := fmt.Sprintf("%d|senderAddr|recipientAddr|10||7|%s", TxTypeTransferByKey, TransferExtraInfoDrip)
	require.Equal(t, want, string(tx.Serialize()))
}

func TestSignProducesVerifiableSignature(t *testing.T) {
	signer := newTestSigner(t)
	tx := NewTransfer(signer.Address(), "recipientAddr", uint256.NewInt(10), 3)

	signed := signer.Sign(tx)

	pubBytes, err := common.DecodeBase58ToBytes(signer.Address())
	require.NoError(t, err)
	sigBytes, err := common.DecodeBase58ToBytes(signed.Sig)
	require.NoError(t, err)

	require.True(t, ed25519.Verify(ed25519.PublicKey(pubBytes), tx.Serialize(), sigBytes))
}

func TestNewSignerRejectsShortKey(t *testing.T) {
	_, err := NewSigner(make([]byte, 16))
	require.Error(t, err)
}

func TestRPCErrorNonceConflict(t *testing.T) {
	require.True(t, (&RPCError{Code: NodeErrInvalidNonce}).IsNonceConflict())
	require.True(t, (&RPCError{Code: NodeErrNonceTooLow}).IsNonceConflict())
	require.True(t, (&RPCError{Message: "invalid nonce: expected 5 got 3"}).IsNonceConflict())
	require.False(t, (&RPCError{Code: NodeErrInsufficient, Message: "balance too low"}).IsNonceConflict())
}
