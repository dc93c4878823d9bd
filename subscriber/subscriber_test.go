package subscriber

import (
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vault713/grinbox/address"
	"github.com/vault713/grinbox/cryptoutil"
	"github.com/vault713/grinbox/wire"
)

var upgrader = websocket.Upgrader{}

type recordingHandler struct {
	mu              sync.Mutex
	opens           int
	reestablishes   int
	drops           int
	closes          []CloseReason
	slates          []*TxProof
	openedCh        chan struct{}
	reestablishedCh chan struct{}
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{
		openedCh:        make(chan struct{}, 8),
		reestablishedCh: make(chan struct{}, 8),
	}
}

func (h *recordingHandler) OnOpen() {
	h.mu.Lock()
	h.opens++
	h.mu.Unlock()
	h.openedCh <- struct{}{}
}

func (h *recordingHandler) OnReestablished() {
	h.mu.Lock()
	h.reestablishes++
	h.mu.Unlock()
	h.reestablishedCh <- struct{}{}
}

func (h *recordingHandler) OnSlate(addr *address.Address, proof *TxProof) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.slates = append(h.slates, proof)
}

func (h *recordingHandler) OnDropped() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.drops++
}

func (h *recordingHandler) OnClose(reason CloseReason) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closes = append(h.closes, reason)
}

func (h *recordingHandler) waitOpened(t *testing.T) {
	t.Helper()
	select {
	case <-h.openedCh:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for OnOpen")
	}
}

// relayStub sends a Challenge with a fixed nonce on connect and records every
// Subscribe request it receives; tests push additional frames through send.
type relayStub struct {
	srv       *httptest.Server
	challenge string
	send      chan interface{}

	mu         sync.Mutex
	subscribes []*wire.SubscribeRequest
}

func newRelayStub(t *testing.T, challenge string) *relayStub {
	t.Helper()
	r := &relayStub{challenge: challenge, send: make(chan interface{}, 8)}
	r.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		conn, err := upgrader.Upgrade(w, req, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		data, _ := wire.EncodeResponse(&wire.ChallengeResponse{Str: r.challenge})
		if conn.WriteMessage(websocket.TextMessage, data) != nil {
			return
		}

		go func() {
			for {
				_, raw, err := conn.ReadMessage()
				if err != nil {
					return
				}
				decoded, err := wire.DecodeRequest(raw)
				if err != nil {
					continue
				}
				if sub, ok := decoded.(*wire.SubscribeRequest); ok {
					r.mu.Lock()
					r.subscribes = append(r.subscribes, sub)
					r.mu.Unlock()
				}
			}
		}()

		for msg := range r.send {
			data, err := wire.EncodeResponse(msg)
			if err != nil {
				continue
			}
			if conn.WriteMessage(websocket.TextMessage, data) != nil {
				return
			}
		}
	}))
	return r
}

func (r *relayStub) addr(t *testing.T) (string, uint16) {
	t.Helper()
	u := strings.TrimPrefix(r.srv.URL, "http://")
	idx := strings.LastIndex(u, ":")
	port, err := strconv.Atoi(u[idx+1:])
	require.NoError(t, err)
	return u[:idx], uint16(port)
}

func (r *relayStub) close() { close(r.send); r.srv.Close() }

func TestClientOpenSubscribesWithSignedChallenge(t *testing.T) {
	stub := newRelayStub(t, "the-challenge")
	defer stub.close()

	sec, pub, err := cryptoutil.GenerateKeyPair()
	require.NoError(t, err)
	host, port := stub.addr(t)
	ownAddr := address.New(pub, host, port, cryptoutil.MainnetVersion)

	handler := newRecordingHandler()
	c := NewClient(ownAddr, sec, true, cryptoutil.MainnetVersion, handler, nil)
	c.Start()
	defer c.Stop()

	handler.waitOpened(t)

	require.Eventually(t, func() bool {
		stub.mu.Lock()
		defer stub.mu.Unlock()
		return len(stub.subscribes) == 1
	}, 2*time.Second, 10*time.Millisecond)

	stub.mu.Lock()
	sub := stub.subscribes[0]
	stub.mu.Unlock()

	assert.Equal(t, ownAddr.PublicKeyB58, sub.Address)
	sig, err := hex.DecodeString(sub.Signature)
	require.NoError(t, err)
	assert.NoError(t, cryptoutil.Verify([]byte("the-challenge"), sig, pub))
}

func TestClientDeliversVerifiedSlate(t *testing.T) {
	stub := newRelayStub(t, "c2")
	defer stub.close()

	sec, pub, err := cryptoutil.GenerateKeyPair()
	require.NoError(t, err)
	host, port := stub.addr(t)
	ownAddr := address.New(pub, host, port, cryptoutil.MainnetVersion)

	senderSec, senderPub, err := cryptoutil.GenerateKeyPair()
	require.NoError(t, err)
	senderAddr := address.New(senderPub, "sender.example", 443, cryptoutil.MainnetVersion)

	plaintext := []byte(`{"slate":true}`)
	body, err := BuildEnvelope(plaintext, ownAddr, senderSec)
	require.NoError(t, err)
	sig := senderSec.Sign([]byte(body))

	handler := newRecordingHandler()
	c := NewClient(ownAddr, sec, true, cryptoutil.MainnetVersion, handler, nil)
	c.Start()
	defer c.Stop()

	handler.waitOpened(t)

	stub.send <- &wire.SlateResponse{
		From:      senderAddr.Stripped(),
		Str:       body,
		Challenge: "",
		Signature: hex.EncodeToString(sig),
	}

	require.Eventually(t, func() bool {
		handler.mu.Lock()
		defer handler.mu.Unlock()
		return len(handler.slates) == 1
	}, 2*time.Second, 10*time.Millisecond)

	handler.mu.Lock()
	proof := handler.slates[0]
	handler.mu.Unlock()

	assert.Equal(t, senderAddr.PublicKeyB58, proof.Address.PublicKeyB58)
	assert.JSONEq(t, string(plaintext), string(proof.Slate))
}

func TestClientDropsSlateFailingProof(t *testing.T) {
	stub := newRelayStub(t, "c3")
	defer stub.close()

	sec, pub, err := cryptoutil.GenerateKeyPair()
	require.NoError(t, err)
	host, port := stub.addr(t)
	ownAddr := address.New(pub, host, port, cryptoutil.MainnetVersion)

	handler := newRecordingHandler()
	c := NewClient(ownAddr, sec, true, cryptoutil.MainnetVersion, handler, nil)
	c.Start()
	defer c.Stop()

	handler.waitOpened(t)

	stub.send <- &wire.SlateResponse{From: "garbage", Str: "garbage", Challenge: "", Signature: "zz"}

	time.Sleep(200 * time.Millisecond)

	handler.mu.Lock()
	defer handler.mu.Unlock()
	assert.Empty(t, handler.slates)
}

func TestClientStopIsNormalClose(t *testing.T) {
	stub := newRelayStub(t, "c4")
	defer stub.close()

	sec, pub, err := cryptoutil.GenerateKeyPair()
	require.NoError(t, err)
	host, port := stub.addr(t)
	ownAddr := address.New(pub, host, port, cryptoutil.MainnetVersion)

	handler := newRecordingHandler()
	c := NewClient(ownAddr, sec, true, cryptoutil.MainnetVersion, handler, nil)
	c.Start()

	handler.waitOpened(t)
	c.Stop()

	handler.mu.Lock()
	defer handler.mu.Unlock()
	require.Len(t, handler.closes, 1)
	assert.False(t, handler.closes[0].Abnormal)
}
