// Package wire implements the tagged-JSON request/response codec exchanged
// over the websocket connection. The discriminator field is "type"; the
// payload field is named "str" on the wire for compatibility with federated
// peers.
package wire

import (
	"encoding/json"
	"fmt"
)

// ErrorKind enumerates the protocol-level error discriminators a peer can
// receive in an Error response.
type ErrorKind string

const (
	ErrUnknownError         ErrorKind = "UnknownError"
	ErrInvalidRequest       ErrorKind = "InvalidRequest"
	ErrInvalidSignature     ErrorKind = "InvalidSignature"
	ErrInvalidChallenge     ErrorKind = "InvalidChallenge"
	ErrTooManySubscriptions ErrorKind = "TooManySubscriptions"
)

// envelope is what every frame is first decoded into to inspect its
// discriminator before dispatching to a concrete type.
type envelope struct {
	Type string `json:"type"`
}

// Request types.

type ChallengeRequest struct{}

type SubscribeRequest struct {
	Address   string `json:"address"`
	Signature string `json:"signature"`
}

type UnsubscribeRequest struct {
	Address string `json:"address"`
}

type PostSlateRequest struct {
	From      string  `json:"from"`
	To        string  `json:"to"`
	Str       string  `json:"str"`
	Signature string  `json:"signature"`
	TTL       *uint32 `json:"ttl,omitempty"`
}

// Response types.

type OkResponse struct{}

type ErrorResponse struct {
	Kind        ErrorKind `json:"kind"`
	Description string    `json:"description"`
}

type ChallengeResponse struct {
	Str string `json:"str"`
}

type SlateResponse struct {
	From      string `json:"from"`
	Str       string `json:"str"`
	Challenge string `json:"challenge"`
	Signature string `json:"signature"`
}

// DecodeRequest inspects the "type" discriminator and returns the decoded
// concrete request value. Unknown discriminators or malformed JSON return
// an error; the serving side maps that to an InvalidRequest response.
func DecodeRequest(data []byte) (interface{}, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("malformed request: %w", err)
	}

	switch env.Type {
	case "Challenge":
		return &ChallengeRequest{}, nil
	case "Subscribe":
		var r SubscribeRequest
		if err := json.Unmarshal(data, &r); err != nil {
			return nil, fmt.Errorf("malformed Subscribe request: %w", err)
		}
		return &r, nil
	case "Unsubscribe":
		var r UnsubscribeRequest
		if err := json.Unmarshal(data, &r); err != nil {
			return nil, fmt.Errorf("malformed Unsubscribe request: %w", err)
		}
		return &r, nil
	case "PostSlate":
		var r PostSlateRequest
		if err := json.Unmarshal(data, &r); err != nil {
			return nil, fmt.Errorf("malformed PostSlate request: %w", err)
		}
		return &r, nil
	default:
		return nil, fmt.Errorf("unknown request type %q", env.Type)
	}
}

// EncodeResponse tags resp with its "type" discriminator and marshals it.
func EncodeResponse(resp interface{}) ([]byte, error) {
	var tagged map[string]interface{}

	raw, err := json.Marshal(resp)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, &tagged); err != nil {
		return nil, err
	}
	if tagged == nil {
		tagged = map[string]interface{}{}
	}

	switch resp.(type) {
	case *OkResponse, OkResponse:
		tagged["type"] = "Ok"
	case *ErrorResponse, ErrorResponse:
		tagged["type"] = "Error"
	case *ChallengeResponse, ChallengeResponse:
		tagged["type"] = "Challenge"
	case *SlateResponse, SlateResponse:
		tagged["type"] = "Slate"
	default:
		return nil, fmt.Errorf("unknown response type %T", resp)
	}

	return json.Marshal(tagged)
}

// EncodeRequest tags req with its "type" discriminator and marshals it, for
// the client roles that speak to a relay: the subscriber and the federation
// forwarder.
func EncodeRequest(req interface{}) ([]byte, error) {
	var tagged map[string]interface{}

	raw, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, &tagged); err != nil {
		return nil, err
	}
	if tagged == nil {
		tagged = map[string]interface{}{}
	}

	switch req.(type) {
	case *ChallengeRequest, ChallengeRequest:
		tagged["type"] = "Challenge"
	case *SubscribeRequest, SubscribeRequest:
		tagged["type"] = "Subscribe"
	case *UnsubscribeRequest, UnsubscribeRequest:
		tagged["type"] = "Unsubscribe"
	case *PostSlateRequest, PostSlateRequest:
		tagged["type"] = "PostSlate"
	default:
		return nil, fmt.Errorf("unknown request type %T", req)
	}

	return json.Marshal(tagged)
}

// DecodeResponse inspects the "type" discriminator on a response frame.
func DecodeResponse(data []byte) (interface{}, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("malformed response: %w", err)
	}

	switch env.Type {
	case "Ok":
		return &OkResponse{}, nil
	case "Error":
		var r ErrorResponse
		if err := json.Unmarshal(data, &r); err != nil {
			return nil, fmt.Errorf("malformed Error response: %w", err)
		}
		return &r, nil
	case "Challenge":
		var r ChallengeResponse
		if err := json.Unmarshal(data, &r); err != nil {
			return nil, fmt.Errorf("malformed Challenge response: %w", err)
		}
		return &r, nil
	case "Slate":
		var r SlateResponse
		if err := json.Unmarshal(data, &r); err != nil {
			return nil, fmt.Errorf("malformed Slate response: %w", err)
		}
		return &r, nil
	default:
		return nil, fmt.Errorf("unknown response type %q", env.Type)
	}
}
