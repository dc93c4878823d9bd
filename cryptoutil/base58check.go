package cryptoutil

import (
	"crypto/sha256"

	"github.com/mr-tron/base58"
)

// MainnetVersion and TestnetVersion are the 2-byte version prefixes used by
// grinbox addresses.
var (
	MainnetVersion = [2]byte{1, 11}
	TestnetVersion = [2]byte{1, 120}
)

const checksumLen = 4

// EncodeBase58Check prepends version, appends a 4-byte double-SHA256
// checksum, and base58-encodes the result.
func EncodeBase58Check(version [2]byte, payload []byte) string {
	buf := make([]byte, 0, 2+len(payload)+checksumLen)
	buf = append(buf, version[0], version[1])
	buf = append(buf, payload...)
	sum := doubleSHA256(buf)
	buf = append(buf, sum[:checksumLen]...)
	return base58.Encode(buf)
}

// DecodeBase58Check reverses EncodeBase58Check, validating the checksum and
// the expected version bytes.
func DecodeBase58Check(expectedVersion [2]byte, text string) ([]byte, error) {
	raw, err := base58.Decode(text)
	if err != nil {
		return nil, newErr(KindInvalidBase58Character, text, err)
	}
	if len(raw) < 2+checksumLen {
		return nil, newErr(KindInvalidBase58Length, text, nil)
	}

	payload := raw[:len(raw)-checksumLen]
	checksum := raw[len(raw)-checksumLen:]
	sum := doubleSHA256(payload)
	for i := 0; i < checksumLen; i++ {
		if sum[i] != checksum[i] {
			return nil, newErr(KindInvalidBase58Checksum, text, nil)
		}
	}

	if payload[0] != expectedVersion[0] || payload[1] != expectedVersion[1] {
		return nil, newErr(KindInvalidBase58Version, text, nil)
	}

	return payload[2:], nil
}

func doubleSHA256(data []byte) [32]byte {
	first := sha256.Sum256(data)
	return sha256.Sum256(first[:])
}
