// Package broker adapts a STOMP broker into the relay's durable queue
// layer: per-recipient queues with expiry, and fan-out of delivered frames
// to live subscribers.
package broker

import (
	"fmt"
	"net"
	"strconv"

	"github.com/gmallard/stompngo"
)

const (
	// queueExpiryMS is the durable queue's x-expires header value: 24h
	// retention for undelivered slates.
	queueExpiryMS = "86400000"
)

// Frame is a broker-delivered message handed to a subscription's sink.
type Frame struct {
	Subject string
	Payload []byte
	ReplyTo string
}

// stompConn is the subset of *stompngo.Connection the adapter depends on,
// so tests can substitute a fake without a live broker.
type stompConn interface {
	Subscribe(h stompngo.Headers) (<-chan stompngo.MessageData, error)
	Unsubscribe(h stompngo.Headers) error
	SendBytes(h stompngo.Headers, b []byte) error
	Disconnect(h stompngo.Headers) error
}

// Dial opens a STOMP connection to uri, authenticating with login/passcode.
func Dial(uri, login, passcode string) (stompConn, error) {
	netConn, err := net.Dial("tcp", uri)
	if err != nil {
		return nil, fmt.Errorf("dial broker %s: %w", uri, err)
	}

	host, _, err := net.SplitHostPort(uri)
	if err != nil {
		host = uri
	}

	headers := stompngo.Headers{
		stompngo.HK_LOGIN, login,
		stompngo.HK_PASSCODE, passcode,
		stompngo.HK_HOST, host,
		stompngo.HK_ACCEPT_VERSION, stompngo.SPL_12,
		stompngo.HK_HEART_BEAT, "10000,10000",
	}

	conn, err := stompngo.Connect(netConn, headers)
	if err != nil {
		return nil, fmt.Errorf("connect broker %s: %w", uri, err)
	}
	return conn, nil
}

func subHeaders(subject, subID string) stompngo.Headers {
	return stompngo.Headers{
		stompngo.HK_DESTINATION, "/queue/" + subject,
		stompngo.HK_ID, subID,
		stompngo.HK_ACK, stompngo.AckModeAuto,
		"durable", "true",
		"x-expires", queueExpiryMS,
	}
}

func sendHeaders(subject, replyTo string, ttl *uint32) stompngo.Headers {
	expiration := queueExpiryMS
	if ttl != nil {
		expiration = strconv.FormatUint(uint64(*ttl), 10)
	}
	return stompngo.Headers{
		stompngo.HK_DESTINATION, "/queue/" + subject,
		"durable", "true",
		"x-expires", queueExpiryMS,
		"expiration", expiration,
		"reply-to", replyTo,
	}
}
