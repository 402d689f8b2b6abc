package ledger

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"

	"github.com/btcsuite/btcutil/base58"
)

// Signer is the opaque key custody used to authorize instructions.
type Signer interface {
	// Principal is the base58 encoded ed25519 public key
	Principal() string
	Sign(payload []byte) ([]byte, error)
}

type KeySigner struct {
	privKey   ed25519.PrivateKey
	principal string
}

var _ Signer = &KeySigner{}

func NewKeySigner(privKey ed25519.PrivateKey) (*KeySigner, error) {
	if len(privKey) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("invalid private key size %d", len(privKey))
	}
	pubKey := privKey.Public().(ed25519.PublicKey)
	return &KeySigner{
		privKey:   privKey,
		principal: base58.Encode(pubKey),
	}, nil
}

func GenerateKeySigner() (*KeySigner, error) {
	_, privKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	return NewKeySigner(privKey)
}

func (s *KeySigner) Principal() string {
	return s.principal
}

func (s *KeySigner) Sign(payload []byte) ([]byte, error) {
	return ed25519.Sign(s.privKey, payload), nil
}

// VerifySignature checks sig over payload against a base58 principal.
func VerifySignature(principal string, payload []byte, sig []byte) bool {
	pubKey := base58.Decode(principal)
	if len(pubKey) != ed25519.PublicKeySize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(pubKey), payload, sig)
}
