package cryptoutil

import (
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/sha256"
	"math/big"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// PublicKey wraps a secp256k1 public key.
type PublicKey struct {
	key *secp256k1.PublicKey
}

// PrivateKey wraps a secp256k1 private key.
type PrivateKey struct {
	key *secp256k1.PrivateKey
}

// GenerateKeyPair creates a fresh secp256k1 key pair.
func GenerateKeyPair() (*PrivateKey, *PublicKey, error) {
	priv, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, nil, err
	}
	return &PrivateKey{key: priv}, &PublicKey{key: priv.PubKey()}, nil
}

// PublicKey derives the public key for this private key.
func (p *PrivateKey) PublicKey() *PublicKey {
	return &PublicKey{key: p.key.PubKey()}
}

// Bytes returns the 33-byte compressed encoding of the public key, the
// payload that addresses base58check-encode.
func (pk *PublicKey) Bytes() []byte {
	return pk.key.SerializeCompressed()
}

// ParsePublicKey parses a 33-byte compressed secp256k1 public key.
func ParsePublicKey(data []byte) (*PublicKey, error) {
	key, err := secp256k1.ParsePubKey(data)
	if err != nil {
		return nil, newErr(KindInvalidBase58Key, "parse public key", err)
	}
	return &PublicKey{key: key}, nil
}

// Sign hashes message with SHA-256 and signs the digest with ECDSA,
// returning a 64-byte r||s signature.
func (p *PrivateKey) Sign(message []byte) []byte {
	hash := sha256.Sum256(message)
	r, s, err := ecdsa.Sign(rand.Reader, p.key.ToECDSA(), hash[:])
	if err != nil {
		// ecdsa.Sign fails only when rand.Reader does, which is fatal to
		// the process regardless.
		panic(err)
	}
	return serializeSignature(r, s)
}

// Verify reports whether signature is a valid signature over message under
// pub, per the same SHA-256-then-ECDSA construction as Sign.
func Verify(message, signature []byte, pub *PublicKey) error {
	r, s, err := deserializeSignature(signature)
	if err != nil {
		return newErr(KindInvalidSignature, "malformed signature", err)
	}
	hash := sha256.Sum256(message)
	if !ecdsa.Verify(pub.key.ToECDSA(), hash[:], r, s) {
		return newErr(KindInvalidSignature, "signature does not verify", ErrInvalidSignature)
	}
	return nil
}

func serializeSignature(r, s *big.Int) []byte {
	rBytes := r.Bytes()
	sBytes := s.Bytes()

	signature := make([]byte, 64)
	copy(signature[32-len(rBytes):32], rBytes)
	copy(signature[64-len(sBytes):64], sBytes)
	return signature
}

func deserializeSignature(data []byte) (*big.Int, *big.Int, error) {
	if len(data) != 64 {
		return nil, nil, ErrInvalidSignature
	}
	r := new(big.Int).SetBytes(data[:32])
	s := new(big.Int).SetBytes(data[32:])
	return r, s, nil
}
