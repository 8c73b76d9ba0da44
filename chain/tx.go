package chain

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/holiman/uint256"

	"github.com/mezonai/mmn-faucet/common"
	"github.com/mezonai/mmn-faucet/jsonx"
)

const (
	TxTypeTransferByKey = 1

	// ExtraInfo tag stamped on every faucet transfer so drips are
	// distinguishable in explorers and tx history.
	TransferExtraInfoDrip = "faucet-drip"
)

// Transfer is an unsigned balance transfer from the funding account.
type Transfer struct {
	Type      int32        `json:"type"`
	Sender    string       `json:"sender"`
	Recipient string       `json:"recipient"`
	Amount    *uint256.Int `json:"amount"`
	Timestamp uint64       `json:"timestamp"`
	TextData  string       `json:"text_data"`
	Nonce     uint64       `json:"nonce"`
	ExtraInfo string       `json:"extra_info,omitempty"`
}

// SignedTransfer carries the transfer plus its base58 ed25519 signature.
type SignedTransfer struct {
	Tx  *Transfer
	Sig string
}

// NewTransfer builds a drip transfer with the given nonce.
func NewTransfer(sender, recipient string, amount *uint256.Int, nonce uint64) *Transfer {
	return &Transfer{
		Type:      TxTypeTransferByKey,
		Sender:    sender,
		Recipient: recipient,
		Amount:    amount,
		Timestamp: uint64(time.Now().UnixNano() / int64(time.Millisecond)),
		TextData:  "",
		Nonce:     nonce,
		ExtraInfo: TransferExtraInfoDrip,
	}
}

// Serialize produces the canonical signing payload. The field order and
// separator must match what the node verifies against.
func (tx *Transfer) Serialize() []byte {
	amountStr := "0"
	if tx.Amount != nil {
		amountStr = tx.Amount.Dec()
	}
	metadata := fmt.Sprintf(
		"%d|%s|%s|%s|%s|%d|%s",
		tx.Type, tx.Sender, tx.Recipient, amountStr, tx.TextData, tx.Nonce, tx.ExtraInfo,
	)
	return []byte(metadata)
}

// Hash returns the sha256 of the JSON encoded transfer, hex encoded. The
// node's reported hash is authoritative; this one is for local logging.
func (tx *Transfer) Hash() string {
	b, _ := jsonx.Marshal(tx)
	sum256 := sha256.Sum256(b)
	return hex.EncodeToString(sum256[:])
}

// Signer signs transfers on behalf of the funding account.
type Signer struct {
	privKey ed25519.PrivateKey
	address string
}

// NewSigner wraps an ed25519 private key. The funding account address is the
// base58 encoding of the public key.
func NewSigner(privKey ed25519.PrivateKey) (*Signer, error) {
	if len(privKey) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("invalid ed25519 private key length %d", len(privKey))
	}
	pub, ok := privKey.Public().(ed25519.PublicKey)
	if !ok {
		return nil, fmt.Errorf("unexpected public key type")
	}
	return &Signer{
		privKey: privKey,
		address: common.EncodeBytesToBase58(pub),
	}, nil
}

// Address returns the funding account address.
func (s *Signer) Address() string {
	return s.address
}

// Sign produces the signed transfer the node expects.
func (s *Signer) Sign(tx *Transfer) *SignedTransfer {
	signature := ed25519.Sign(s.privKey, tx.Serialize())
	return &SignedTransfer{
		Tx:  tx,
		Sig: common.EncodeBytesToBase58(signature),
	}
}
