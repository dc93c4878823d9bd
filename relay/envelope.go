package relay

import (
	"encoding/hex"
	"encoding/json"
)

// storedEnvelope is the broker payload tuple: the data sufficient for a
// subscriber to reconstruct and verify a transaction proof.
type storedEnvelope struct {
	Body      string `json:"body"`
	Challenge string `json:"challenge"`
	Signature string `json:"signature"`
}

func encodeEnvelope(body, challenge, signature string) []byte {
	data, _ := json.Marshal(storedEnvelope{Body: body, Challenge: challenge, Signature: signature})
	return data
}

func decodeEnvelope(data []byte) (body, challenge, signature string) {
	var env storedEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", "", ""
	}
	return env.Body, env.Challenge, env.Signature
}

func decodeHex(s string) ([]byte, error) {
	return hex.DecodeString(s)
}
