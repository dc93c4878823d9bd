// Package relay implements the inbound side of the relay: the
// per-connection challenge/auth state machine, subscription accounting, and
// the routing of broker frames back to the owning connection's socket.
package relay

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/vault713/grinbox/address"
	"github.com/vault713/grinbox/broker"
	"github.com/vault713/grinbox/cryptoutil"
	"github.com/vault713/grinbox/internal/logger"
	"github.com/vault713/grinbox/internal/metrics"
	"github.com/vault713/grinbox/wire"
)

// MaxSubscriptions is the per-connection subscription cap.
const MaxSubscriptions = 1

// Federator forwards a post to a non-local recipient's home relay,
// returning nil on a successful federated exchange.
type Federator interface {
	PostSlate(req *wire.PostSlateRequest) error
}

// BrokerClient is the subset of *broker.Adapter the connection state
// machine depends on, so tests can substitute a fake broker.
type BrokerClient interface {
	Subscribe(connID, subject string, sink chan<- broker.Frame)
	Unsubscribe(connID string)
	Publish(subject string, payload []byte, replyTo string, ttl *uint32)
}

// subscriptionState is the session-side half of a subscription: the sink
// the broker adapter forwards frames into, and the task reading from it.
type subscriptionState struct {
	address string
	sink    chan broker.Frame
	done    chan struct{}
}

// Connection is a single inbound session's state machine. One goroutine
// owns the read loop; the write half is serialized under writeMu because
// broker-fed Slate pushes may interleave with request responses.
type Connection struct {
	ID   string
	conn *websocket.Conn

	writeMu sync.Mutex

	challenge string

	subMu sync.Mutex
	subs  map[string]*subscriptionState // keyed by address key (public key)

	broker      BrokerClient
	federator   Federator
	localDomain string
	localPort   uint16
	version     [2]byte
	log         logger.Logger

	writeTimeout time.Duration
}

// NewConnection wraps an accepted websocket connection.
func NewConnection(conn *websocket.Conn, b BrokerClient, fed Federator, localDomain string, localPort uint16, version [2]byte, challenge string, log logger.Logger) *Connection {
	if log == nil {
		log = logger.GetDefaultLogger()
	}
	return &Connection{
		ID:           uuid.NewString(),
		conn:         conn,
		challenge:    challenge,
		subs:         make(map[string]*subscriptionState),
		broker:       b,
		federator:    fed,
		localDomain:  localDomain,
		localPort:    localPort,
		version:      version,
		log:          log,
		writeTimeout: 10 * time.Second,
	}
}

// Serve runs the connection's read loop until the socket closes or errors,
// sending the initial Challenge first. Teardown unsubscribes everything
// outstanding.
func (c *Connection) Serve() {
	metrics.ConnectionsOpened.Inc()
	metrics.ConnectionsActive.Inc()
	defer metrics.ConnectionsActive.Dec()

	reason := "normal"
	defer func() {
		c.teardown()
		metrics.ConnectionsClosed.WithLabelValues(reason).Inc()
		_ = c.conn.Close()
	}()

	if err := c.writeResponse(&wire.ChallengeResponse{Str: c.challenge}); err != nil {
		reason = "error"
		return
	}

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				reason = "abnormal"
				c.log.Warn("connection read error", logger.Error(err))
			}
			return
		}

		start := time.Now()
		req, err := wire.DecodeRequest(data)
		if err != nil {
			c.writeResponse(&wire.ErrorResponse{Kind: wire.ErrInvalidRequest, Description: err.Error()})
			continue
		}

		kind, resp := c.dispatch(req)
		metrics.RequestDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())

		if err := c.writeResponse(resp); err != nil {
			reason = "error"
			return
		}
	}
}

// dispatch handles one decoded request and returns the response to send.
func (c *Connection) dispatch(req interface{}) (kind string, resp interface{}) {
	switch r := req.(type) {
	case *wire.ChallengeRequest:
		return "challenge", &wire.ChallengeResponse{Str: c.challenge}

	case *wire.SubscribeRequest:
		return "subscribe", c.handleSubscribe(r)

	case *wire.UnsubscribeRequest:
		return "unsubscribe", c.handleUnsubscribe(r)

	case *wire.PostSlateRequest:
		return "post_slate", c.handlePostSlate(r)

	default:
		return "unknown", &wire.ErrorResponse{Kind: wire.ErrInvalidRequest, Description: "unrecognized request"}
	}
}

func (c *Connection) handleSubscribe(r *wire.SubscribeRequest) interface{} {
	addr, err := address.Parse(r.Address, c.version)
	if err != nil {
		return &wire.ErrorResponse{Kind: wire.ErrInvalidRequest, Description: err.Error()}
	}

	sig, err := decodeHex(r.Signature)
	if err != nil {
		return &wire.ErrorResponse{Kind: wire.ErrInvalidSignature, Description: "malformed signature"}
	}
	if err := cryptoutil.Verify([]byte(c.challenge), sig, addr.PublicKey); err != nil {
		return &wire.ErrorResponse{Kind: wire.ErrInvalidSignature, Description: "signature does not verify"}
	}

	c.subMu.Lock()
	if len(c.subs) >= MaxSubscriptions {
		c.subMu.Unlock()
		metrics.SubscriptionsRejected.Inc()
		return &wire.ErrorResponse{Kind: wire.ErrTooManySubscriptions, Description: "connection already subscribed"}
	}

	sink := make(chan broker.Frame, 64)
	done := make(chan struct{})
	c.subs[addr.PublicKeyB58] = &subscriptionState{address: addr.PublicKeyB58, sink: sink, done: done}
	c.subMu.Unlock()

	c.broker.Subscribe(c.ID, addr.PublicKeyB58, sink)
	metrics.SubscriptionsActive.Inc()
	go c.routeSlates(addr.PublicKeyB58, sink, done)

	return &wire.OkResponse{}
}

func (c *Connection) handleUnsubscribe(r *wire.UnsubscribeRequest) interface{} {
	addr, err := address.Parse(r.Address, c.version)
	if err != nil {
		return &wire.ErrorResponse{Kind: wire.ErrInvalidRequest, Description: err.Error()}
	}

	c.subMu.Lock()
	sub, ok := c.subs[addr.PublicKeyB58]
	if ok {
		delete(c.subs, addr.PublicKeyB58)
	}
	c.subMu.Unlock()

	if !ok {
		return &wire.ErrorResponse{Kind: wire.ErrInvalidRequest, Description: "not subscribed"}
	}

	close(sub.done)
	c.broker.Unsubscribe(c.ID)
	metrics.SubscriptionsActive.Dec()
	return &wire.OkResponse{}
}

// handlePostSlate verifies the signature over the body first, then over
// body||challenge for clients that bind their signature to the server
// challenge. The form that verified is recorded in the stored envelope.
func (c *Connection) handlePostSlate(r *wire.PostSlateRequest) interface{} {
	from, err := address.Parse(r.From, c.version)
	if err != nil {
		return &wire.ErrorResponse{Kind: wire.ErrInvalidRequest, Description: "bad from address"}
	}
	to, err := address.Parse(r.To, c.version)
	if err != nil {
		return &wire.ErrorResponse{Kind: wire.ErrInvalidRequest, Description: "bad to address"}
	}

	sig, err := decodeHex(r.Signature)
	if err != nil {
		return &wire.ErrorResponse{Kind: wire.ErrInvalidSignature, Description: "malformed signature"}
	}

	recordedChallenge := ""
	verifyErr := cryptoutil.Verify([]byte(r.Str), sig, from.PublicKey)
	if verifyErr != nil {
		recordedChallenge = c.challenge
		verifyErr = cryptoutil.Verify([]byte(r.Str+c.challenge), sig, from.PublicKey)
	}
	if verifyErr != nil {
		return &wire.ErrorResponse{Kind: wire.ErrInvalidSignature, Description: "signature does not verify"}
	}

	local := to.Domain == c.localDomain && to.Port == c.localPort
	if local {
		metrics.SlatesPosted.WithLabelValues("local", "ok").Inc()
		payload := encodeEnvelope(r.Str, recordedChallenge, r.Signature)
		c.broker.Publish(to.PublicKeyB58, payload, from.Stripped(), r.TTL)
		return &wire.OkResponse{}
	}

	if c.federator == nil {
		metrics.SlatesPosted.WithLabelValues("federated", "error").Inc()
		return &wire.ErrorResponse{Kind: wire.ErrUnknownError, Description: "federation unavailable"}
	}
	if err := c.federator.PostSlate(r); err != nil {
		metrics.SlatesPosted.WithLabelValues("federated", "error").Inc()
		return &wire.ErrorResponse{Kind: wire.ErrUnknownError, Description: "federation failed"}
	}
	metrics.SlatesPosted.WithLabelValues("federated", "ok").Inc()
	return &wire.OkResponse{}
}

// routeSlates reads broker frames for one subscription and writes Slate
// responses to this connection's serialized write half.
func (c *Connection) routeSlates(subject string, sink chan broker.Frame, done chan struct{}) {
	for {
		select {
		case <-done:
			return
		case frame, ok := <-sink:
			if !ok {
				return
			}
			body, challenge, signature := decodeEnvelope(frame.Payload)
			resp := &wire.SlateResponse{From: frame.ReplyTo, Str: body, Challenge: challenge, Signature: signature}
			if err := c.writeResponse(resp); err != nil {
				c.log.Warn("failed delivering slate, connection likely closing", logger.Error(err))
				return
			}
		}
	}
}

func (c *Connection) teardown() {
	c.subMu.Lock()
	subs := c.subs
	c.subs = make(map[string]*subscriptionState)
	c.subMu.Unlock()

	for _, sub := range subs {
		close(sub.done)
		metrics.SubscriptionsActive.Dec()
	}
	c.broker.Unsubscribe(c.ID)
}

func (c *Connection) writeResponse(resp interface{}) error {
	data, err := wire.EncodeResponse(resp)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}
