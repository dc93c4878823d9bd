// Package subscriber implements a long-lived, reconnecting client that
// subscribes to one address's slates and verifies each delivered Slate
// before handing it to a user-supplied Handler.
package subscriber

import (
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vault713/grinbox/address"
	"github.com/vault713/grinbox/cryptoutil"
	"github.com/vault713/grinbox/internal/logger"
	"github.com/vault713/grinbox/internal/metrics"
	"github.com/vault713/grinbox/wire"
)

const keepaliveInterval = 30 * time.Second

// CloseReason distinguishes a deliberate Stop from the loop exiting after a
// socket error.
type CloseReason struct {
	Abnormal bool
	Err      error
}

// Handler receives the lifecycle events a Client emits.
type Handler interface {
	OnOpen()
	OnReestablished()
	OnSlate(addr *address.Address, slate *TxProof)
	OnDropped()
	OnClose(reason CloseReason)
}

// Client maintains a single live peer session plus a reconnect loop.
type Client struct {
	ownAddr  *address.Address
	ownSec   *cryptoutil.PrivateKey
	unsecure bool
	version  [2]byte
	handler  Handler
	log      logger.Logger

	// mu guards sender, the slot holding the live session's connection.
	// Stop clears it and closes done; the reconnect loop observes done to
	// exit after its current attempt.
	mu     sync.Mutex
	sender *websocket.Conn
	done   chan struct{}
	wg     sync.WaitGroup
}

// NewClient builds a subscriber Client for ownAddr/ownSec. unsecure selects
// ws:// over wss:// (GRINBOX_PROTOCOL_UNSECURE).
func NewClient(ownAddr *address.Address, ownSec *cryptoutil.PrivateKey, unsecure bool, version [2]byte, handler Handler, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetDefaultLogger()
	}
	return &Client{
		ownAddr:  ownAddr,
		ownSec:   ownSec,
		unsecure: unsecure,
		version:  version,
		handler:  handler,
		log:      log,
	}
}

// Start begins the reconnect loop in a background goroutine.
func (c *Client) Start() {
	c.done = make(chan struct{})
	c.wg.Add(1)
	go c.run()
}

// Stop sends a normal close on the live session (if any), clears the active
// sender slot, signals the reconnect loop through done, and waits for the
// loop to exit after its current attempt.
func (c *Client) Stop() {
	c.mu.Lock()
	if c.sender != nil {
		_ = c.sender.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		_ = c.sender.Close()
		c.sender = nil
	}
	c.mu.Unlock()
	close(c.done)
	c.wg.Wait()
}

func (c *Client) isStopped() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

func (c *Client) run() {
	defer c.wg.Done()

	var retries uint
	connectedAtLeastOnce := false

	for {
		if c.isStopped() {
			c.handler.OnClose(CloseReason{Abnormal: false})
			return
		}

		opened, err := c.connectOnce(&retries, &connectedAtLeastOnce)

		if c.isStopped() {
			c.handler.OnClose(CloseReason{Abnormal: err != nil && !opened, Err: err})
			return
		}

		if retries == 0 && connectedAtLeastOnce {
			metrics.SubscriberDropped.Inc()
			c.handler.OnDropped()
		}

		secs := uint(32)
		if retries < 5 {
			secs = 1 << retries
		}
		time.Sleep(time.Duration(secs) * time.Second)
		retries++
		metrics.SubscriberReconnects.Inc()
	}
}

// connectOnce dials the peer, runs the subscribe handshake and read loop
// until the socket closes, and reports whether the subscribe handshake
// completed (opened), which fires OnOpen or OnReestablished.
func (c *Client) connectOnce(retries *uint, connectedAtLeastOnce *bool) (opened bool, err error) {
	scheme := "wss"
	if c.unsecure {
		scheme = "ws"
	}
	url := fmt.Sprintf("%s://%s:%d", scheme, c.ownAddr.Domain, c.ownAddr.Port)

	dialer := &websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, dialErr := dialer.Dial(url, nil)
	if dialErr != nil {
		return false, dialErr
	}

	c.mu.Lock()
	if c.isStopped() {
		c.mu.Unlock()
		_ = conn.Close()
		return false, nil
	}
	c.sender = conn
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		if c.sender == conn {
			c.sender = nil
		}
		c.mu.Unlock()
		_ = conn.Close()
	}()

	keepaliveDone := make(chan struct{})
	var keepaliveWg sync.WaitGroup
	subscribed := false

	for {
		_, data, readErr := conn.ReadMessage()
		if readErr != nil {
			close(keepaliveDone)
			keepaliveWg.Wait()
			return opened, readErr
		}

		resp, decodeErr := wire.DecodeResponse(data)
		if decodeErr != nil {
			c.log.Warn("could not parse response", logger.Error(decodeErr))
			continue
		}

		switch r := resp.(type) {
		case *wire.ChallengeResponse:
			if subscribed {
				continue
			}
			if err := c.sendSubscribe(conn, r.Str); err != nil {
				close(keepaliveDone)
				keepaliveWg.Wait()
				return opened, err
			}
			subscribed = true

			*retries = 0
			if *connectedAtLeastOnce {
				c.handler.OnReestablished()
			} else {
				c.handler.OnOpen()
				*connectedAtLeastOnce = true
			}
			opened = true

			keepaliveWg.Add(1)
			go c.keepalive(conn, keepaliveDone, &keepaliveWg)

		case *wire.SlateResponse:
			proof, verr := VerifyProof(r.From, r.Str, r.Challenge, r.Signature, c.ownSec, c.ownAddr, c.version)
			if verr != nil {
				outcome := "error"
				if pe, ok := verr.(*ProofError); ok {
					outcome = string(pe.Kind)
				}
				metrics.SlatesReceived.WithLabelValues(outcome).Inc()
				c.log.Warn("dropping slate that failed proof verification", logger.Error(verr))
				continue
			}
			metrics.SlatesReceived.WithLabelValues("verified").Inc()
			c.handler.OnSlate(proof.Address, proof)

		case *wire.ErrorResponse:
			c.log.Warn("relay returned error", logger.String("kind", string(r.Kind)), logger.String("description", r.Description))

		default:
			// Ok or unrecognized frames require no action here.
		}
	}
}

func (c *Client) sendSubscribe(conn *websocket.Conn, challenge string) error {
	sig := c.ownSec.Sign([]byte(challenge))
	req := &wire.SubscribeRequest{Address: c.ownAddr.PublicKeyB58, Signature: hex.EncodeToString(sig)}
	data, err := wire.EncodeRequest(req)
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}

// keepalive pings the connection every interval, re-arming the same ticker
// rather than spawning a new one each tick. A ping failure closes the
// socket, which the read loop in connectOnce observes as a read error and
// routes into the reconnect path.
func (c *Client) keepalive(conn *websocket.Conn, done chan struct{}, wg *sync.WaitGroup) {
	defer wg.Done()
	ticker := time.NewTicker(keepaliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				_ = conn.Close()
				return
			}
			ticker.Reset(keepaliveInterval)
		}
	}
}
