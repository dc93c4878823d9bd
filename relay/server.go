package relay

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/vault713/grinbox/internal/logger"
)

// Server accepts inbound websocket connections and hands each one to a new
// Connection state machine.
type Server struct {
	upgrader    websocket.Upgrader
	broker      BrokerClient
	federator   Federator
	localDomain string
	localPort   uint16
	version     [2]byte
	challenge   string
	log         logger.Logger
}

// NewServer builds a Server. The challenge is generated once at
// construction and held for the process lifetime; signatures are bound
// either to it or to the posted payload, so rotating it per connection
// would gain nothing.
func NewServer(b BrokerClient, fed Federator, localDomain string, localPort uint16, version [2]byte, log logger.Logger) (*Server, error) {
	if log == nil {
		log = logger.GetDefaultLogger()
	}
	challenge, err := randomChallenge()
	if err != nil {
		return nil, fmt.Errorf("generate challenge: %w", err)
	}

	return &Server{
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
		broker:      b,
		federator:   fed,
		localDomain: localDomain,
		localPort:   localPort,
		version:     version,
		challenge:   challenge,
		log:         log,
	}, nil
}

// Handler returns the http.Handler upgrading requests to websocket
// connections and serving each with its own Connection.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			http.Error(w, fmt.Sprintf("websocket upgrade failed: %v", err), http.StatusBadRequest)
			return
		}

		c := NewConnection(conn, s.broker, s.federator, s.localDomain, s.localPort, s.version, s.challenge, s.log)
		c.Serve()
	})
}

func randomChallenge() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
