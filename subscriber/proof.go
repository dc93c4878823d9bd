package subscriber

import (
	"encoding/hex"
	"encoding/json"

	"github.com/vault713/grinbox/address"
	"github.com/vault713/grinbox/cryptoutil"
)

// envelope is the encrypted payload shape a PostSlate body decodes to before
// decryption: the destination the message is bound to plus the ciphertext.
type envelope struct {
	Destination string `json:"destination"`
	Ciphertext  string `json:"ciphertext"`
}

// BuildEnvelope seals plaintext for to's public key and wraps it with the
// destination address it is bound to, producing the string a publisher
// sends as PostSlate's body.
func BuildEnvelope(plaintext []byte, to *address.Address, senderSec *cryptoutil.PrivateKey) (string, error) {
	ciphertext, err := cryptoutil.EncryptTo(plaintext, to.PublicKey, senderSec)
	if err != nil {
		return "", err
	}
	data, err := json.Marshal(envelope{Destination: to.Stripped(), Ciphertext: hex.EncodeToString(ciphertext)})
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// TxProof is the result of a verified Slate: the sender's address and the
// decrypted, opaque slate payload.
type TxProof struct {
	Address *address.Address
	Slate   json.RawMessage
}

// VerifyProof runs the transaction proof verification chain: parse the
// sender address and signature, verify the signature over body||challenge,
// decode the encrypted envelope, check it is bound to ownAddr, derive the
// shared key and decrypt, and parse the slate. Each step fails with its own
// named error kind.
func VerifyProof(from, body, challenge, signature string, ownSec *cryptoutil.PrivateKey, ownAddr *address.Address, version [2]byte) (*TxProof, error) {
	fromAddr, err := address.Parse(from, version)
	if err != nil {
		return nil, proofErr(ErrParseAddress, err)
	}

	pub := fromAddr.PublicKey
	if pub == nil {
		return nil, proofErr(ErrParsePublicKey, nil)
	}

	sig, err := hex.DecodeString(signature)
	if err != nil {
		return nil, proofErr(ErrParseSignature, err)
	}

	if err := cryptoutil.Verify([]byte(body+challenge), sig, pub); err != nil {
		return nil, proofErr(ErrVerifySignature, err)
	}

	var env envelope
	if err := json.Unmarshal([]byte(body), &env); err != nil {
		return nil, proofErr(ErrParseEnvelope, err)
	}

	if env.Destination != ownAddr.Stripped() {
		return nil, proofErr(ErrVerifyDestination, nil)
	}

	ciphertext, err := hex.DecodeString(env.Ciphertext)
	if err != nil {
		return nil, proofErr(ErrDecryptionKey, err)
	}

	plaintext, err := cryptoutil.DecryptFrom(ciphertext, pub, ownSec)
	if err != nil {
		return nil, proofErr(ErrDecryptMessage, err)
	}

	var slate json.RawMessage
	if err := json.Unmarshal(plaintext, &slate); err != nil {
		return nil, proofErr(ErrParseSlate, err)
	}

	return &TxProof{Address: fromAddr, Slate: slate}, nil
}
