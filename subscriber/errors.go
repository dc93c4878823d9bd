package subscriber

// ProofErrorKind names which step of the transaction proof verification
// chain failed, so callers can log a precise cause without ever logging
// message content.
type ProofErrorKind string

const (
	ErrParseAddress      ProofErrorKind = "ParseAddress"
	ErrParsePublicKey    ProofErrorKind = "ParsePublicKey"
	ErrParseSignature    ProofErrorKind = "ParseSignature"
	ErrVerifySignature   ProofErrorKind = "VerifySignature"
	ErrParseEnvelope     ProofErrorKind = "ParseEncryptedEnvelope"
	ErrVerifyDestination ProofErrorKind = "VerifyDestination"
	ErrDecryptionKey     ProofErrorKind = "DecryptionKey"
	ErrDecryptMessage    ProofErrorKind = "DecryptMessage"
	ErrParseSlate        ProofErrorKind = "ParseSlate"
)

// ProofError wraps the step that failed and its underlying cause.
type ProofError struct {
	Kind  ProofErrorKind
	Cause error
}

func (e *ProofError) Error() string {
	if e.Cause != nil {
		return string(e.Kind) + ": " + e.Cause.Error()
	}
	return string(e.Kind)
}

func (e *ProofError) Unwrap() error { return e.Cause }

func proofErr(kind ProofErrorKind, cause error) *ProofError {
	return &ProofError{Kind: kind, Cause: cause}
}
