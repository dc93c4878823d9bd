package cryptoutil

import (
	"crypto/rand"
	"crypto/sha256"
	"io"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const hkdfInfo = "grinbox-envelope-v1"

// EncryptTo encrypts plaintext for recipientPub using an ECDH shared secret
// between senderSec and recipientPub, run through HKDF-SHA256 to derive a
// ChaCha20-Poly1305 key. The nonce is prepended to the sealed ciphertext.
func EncryptTo(plaintext []byte, recipientPub *PublicKey, senderSec *PrivateKey) ([]byte, error) {
	aead, err := newAEAD(senderSec, recipientPub)
	if err != nil {
		return nil, newErr(KindEncryption, "derive cipher", err)
	}

	nonce := make([]byte, chacha20poly1305.NonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, newErr(KindEncryption, "generate nonce", err)
	}

	ciphertext := aead.Seal(nil, nonce, plaintext, nil)
	return append(nonce, ciphertext...), nil
}

// DecryptFrom reverses EncryptTo: recipientSec and senderPub derive the same
// shared secret, so the same AEAD key is recovered. Decryption fails
// (authenticated) if the envelope was tampered with.
func DecryptFrom(ciphertext []byte, senderPub *PublicKey, recipientSec *PrivateKey) ([]byte, error) {
	if len(ciphertext) < chacha20poly1305.NonceSize {
		return nil, newErr(KindDecryption, "envelope too short", nil)
	}

	aead, err := newAEAD(recipientSec, senderPub)
	if err != nil {
		return nil, newErr(KindDecryption, "derive cipher", err)
	}

	nonce := ciphertext[:chacha20poly1305.NonceSize]
	ct := ciphertext[chacha20poly1305.NonceSize:]

	plaintext, err := aead.Open(nil, nonce, ct, nil)
	if err != nil {
		return nil, newErr(KindDecryption, "authentication failed", err)
	}
	return plaintext, nil
}

func newAEAD(sec *PrivateKey, pub *PublicKey) (interface {
	Seal(dst, nonce, plaintext, additionalData []byte) []byte
	Open(dst, nonce, ciphertext, additionalData []byte) ([]byte, error)
}, error) {
	shared := secp256k1.GenerateSharedSecret(sec.key, pub.key)

	reader := hkdf.New(sha256.New, shared, nil, []byte(hkdfInfo))
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, err
	}

	return chacha20poly1305.New(key)
}
