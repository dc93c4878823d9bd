// Package federation implements the transient outbound peer session used
// to forward a PostSlate to a recipient's home relay when its (domain,port)
// is not local.
package federation

import (
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vault713/grinbox/address"
	"github.com/vault713/grinbox/internal/logger"
	"github.com/vault713/grinbox/internal/metrics"
	"github.com/vault713/grinbox/wire"
)

// Client dials peer relays to forward posts. It implements relay.Federator.
type Client struct {
	unsecure bool
	version  [2]byte
	dialer   *websocket.Dialer
	log      logger.Logger
}

// NewClient builds a federation Client. When unsecure is true, peer dials
// use ws:// instead of wss://, per GRINBOX_PROTOCOL_UNSECURE. version is
// the address version used to parse req.To's domain and port.
func NewClient(unsecure bool, version [2]byte, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetDefaultLogger()
	}
	return &Client{
		unsecure: unsecure,
		version:  version,
		dialer:   &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		log:      log,
	}
}

// PostSlate opens a transient session to req.To's home relay, awaits the
// peer's Challenge, forwards req verbatim (no re-signing: signatures must
// survive federation unchanged), and maps the peer's reply to success or
// failure. It satisfies relay.Federator.
func (c *Client) PostSlate(req *wire.PostSlateRequest) error {
	to, err := address.Parse(req.To, c.version)
	if err != nil {
		return fmt.Errorf("parse recipient address: %w", err)
	}

	metrics.FederationAttempts.Inc()
	start := time.Now()
	defer func() { metrics.FederationDuration.Observe(time.Since(start).Seconds()) }()

	scheme := "wss"
	if c.unsecure {
		scheme = "ws"
	}
	url := fmt.Sprintf("%s://%s:%d", scheme, to.Domain, to.Port)

	conn, _, err := c.dialer.Dial(url, nil)
	if err != nil {
		metrics.FederationOutcomes.WithLabelValues("dial_failure").Inc()
		return fmt.Errorf("dial peer %s: %w", url, err)
	}
	defer conn.Close()

	// Await the peer's Challenge and discard its body; the local server's
	// challenge, if any, is already embedded in req.Signature.
	if _, _, err := conn.ReadMessage(); err != nil {
		metrics.FederationOutcomes.WithLabelValues("error").Inc()
		return fmt.Errorf("await peer challenge: %w", err)
	}

	data, err := wire.EncodeRequest(req)
	if err != nil {
		metrics.FederationOutcomes.WithLabelValues("error").Inc()
		return fmt.Errorf("encode post slate: %w", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		metrics.FederationOutcomes.WithLabelValues("error").Inc()
		return fmt.Errorf("send post slate: %w", err)
	}

	_, respData, err := conn.ReadMessage()
	if err != nil {
		metrics.FederationOutcomes.WithLabelValues("error").Inc()
		return fmt.Errorf("await peer response: %w", err)
	}

	resp, err := wire.DecodeResponse(respData)
	if err != nil {
		metrics.FederationOutcomes.WithLabelValues("error").Inc()
		return fmt.Errorf("decode peer response: %w", err)
	}

	switch r := resp.(type) {
	case *wire.OkResponse:
		metrics.FederationOutcomes.WithLabelValues("ok").Inc()
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		return nil
	case *wire.ErrorResponse:
		metrics.FederationOutcomes.WithLabelValues("error").Inc()
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseProtocolError, r.Description))
		return fmt.Errorf("peer rejected post slate: %s", r.Kind)
	default:
		metrics.FederationOutcomes.WithLabelValues("error").Inc()
		return fmt.Errorf("unexpected peer response %T", resp)
	}
}
