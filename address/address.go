// Package address implements grinbox address parsing and formatting: a
// self-describing `publicKey@domain:port` identity with a base58check text
// encoding for the public key.
package address

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/vault713/grinbox/cryptoutil"
)

const (
	// DefaultDomain and DefaultPort are omitted from the canonical text
	// form when they match.
	DefaultDomain = "grinbox.io"
	DefaultPort   = 443

	scheme = "grinbox://"
)

var addressRegex = regexp.MustCompile(
	`^(grinbox://)?(?P<public_key>[123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz]{52})(@(?P<domain>[a-zA-Z0-9\.]+)(:(?P<port>[0-9]*))?)?$`,
)

// Address is a parsed grinbox address.
type Address struct {
	PublicKey    *cryptoutil.PublicKey
	PublicKeyB58 string
	Domain       string
	Port         uint16
	VersionBytes [2]byte
}

// New builds an Address from a public key, defaulting domain and port.
func New(pub *cryptoutil.PublicKey, domain string, port uint16, version [2]byte) *Address {
	if domain == "" {
		domain = DefaultDomain
	}
	if port == 0 {
		port = DefaultPort
	}
	return &Address{
		PublicKey:    pub,
		PublicKeyB58: cryptoutil.EncodeBase58Check(version, pub.Bytes()),
		Domain:       domain,
		Port:         port,
		VersionBytes: version,
	}
}

// Parse parses a canonical or stripped address string against the given
// expected version bytes (mainnet or testnet).
func Parse(text string, version [2]byte) (*Address, error) {
	m := addressRegex.FindStringSubmatch(text)
	if m == nil {
		return nil, fmt.Errorf("%s: %w", cryptoutil.KindAddressParsing, addressParseErr(text))
	}

	names := addressRegex.SubexpNames()
	groups := make(map[string]string, len(names))
	for i, name := range names {
		if name != "" {
			groups[name] = m[i]
		}
	}

	pubKeyB58 := groups["public_key"]
	domain := groups["domain"]
	portStr := groups["port"]

	var port uint16
	if portStr != "" {
		p, err := strconv.ParseUint(portStr, 10, 16)
		if err != nil {
			return nil, fmt.Errorf("NumberParsing: %w", err)
		}
		port = uint16(p)
	}

	payload, err := cryptoutil.DecodeBase58Check(version, pubKeyB58)
	if err != nil {
		return nil, err
	}
	pub, err := cryptoutil.ParsePublicKey(payload)
	if err != nil {
		return nil, err
	}

	return New(pub, domain, port, version), nil
}

// Format renders the canonical text form, omitting the domain/port suffix
// when both are default, and omitting just the port when only it is
// default, so wire messages stay byte-compatible with federated peers.
func (a *Address) Format() string {
	s := scheme + a.PublicKeyB58
	if a.Domain != DefaultDomain || a.Port != DefaultPort {
		s += "@" + a.Domain
		if a.Port != DefaultPort {
			s += ":" + strconv.Itoa(int(a.Port))
		}
	}
	return s
}

// Stripped returns the canonical text form with the "grinbox://" scheme
// prefix sliced off. Not re-derived: literally a slice of Format(), the
// form used in wire from/to fields.
func (a *Address) Stripped() string {
	return a.Format()[len(scheme):]
}

func (a *Address) String() string { return a.Format() }

type parseError struct{ text string }

func (e *parseError) Error() string { return fmt.Sprintf("could not parse address %q", e.text) }

func addressParseErr(text string) error { return &parseError{text: text} }
