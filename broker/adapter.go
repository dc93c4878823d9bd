package broker

import (
	"sync"

	"github.com/gmallard/stompngo"
	"github.com/google/uuid"

	"github.com/vault713/grinbox/internal/logger"
	"github.com/vault713/grinbox/internal/metrics"
)

// consumer is the adapter's bookkeeping for a single live subscription.
type consumer struct {
	subject string
	subID   string
	sink    chan<- Frame
	stopCh  chan struct{}
}

type subscribeReq struct {
	connID  string
	subject string
	sink    chan<- Frame
}

type unsubscribeReq struct {
	connID string
}

type publishReq struct {
	subject string
	payload []byte
	replyTo string
	ttl     *uint32
}

// Adapter owns the broker socket from one dedicated worker goroutine; all
// broker I/O funnels through its request channel.
type Adapter struct {
	conn stompConn
	log  logger.Logger

	requests chan interface{}
	done     chan struct{}

	mu         sync.Mutex
	byConn     map[string]*consumer
	connBySubj map[string]string
}

// NewAdapter wraps an already-dialed STOMP connection and starts its worker.
func NewAdapter(conn stompConn, log logger.Logger) *Adapter {
	if log == nil {
		log = logger.GetDefaultLogger()
	}
	a := &Adapter{
		conn:       conn,
		log:        log,
		requests:   make(chan interface{}, 64),
		done:       make(chan struct{}),
		byConn:     make(map[string]*consumer),
		connBySubj: make(map[string]string),
	}
	go a.run()
	return a
}

// Subscribe registers sink to receive broker frames for subject, owned by
// connID. Any existing consumer for the same subject is evicted first, so
// the most recent subscriber wins.
func (a *Adapter) Subscribe(connID, subject string, sink chan<- Frame) {
	a.requests <- subscribeReq{connID: connID, subject: subject, sink: sink}
}

// Unsubscribe tears down connID's subscription, if any. Idempotent.
func (a *Adapter) Unsubscribe(connID string) {
	a.requests <- unsubscribeReq{connID: connID}
}

// Publish sends payload to subject with an optional reply-to and TTL.
// Fire-and-forget from the caller's perspective.
func (a *Adapter) Publish(subject string, payload []byte, replyTo string, ttl *uint32) {
	a.requests <- publishReq{subject: subject, payload: payload, replyTo: replyTo, ttl: ttl}
}

// Close stops the adapter's worker and disconnects from the broker.
func (a *Adapter) Close() {
	close(a.done)
}

func (a *Adapter) run() {
	for {
		select {
		case <-a.done:
			_ = a.conn.Disconnect(nil)
			return
		case req := <-a.requests:
			switch r := req.(type) {
			case subscribeReq:
				a.handleSubscribe(r)
			case unsubscribeReq:
				a.handleUnsubscribe(r.connID)
			case publishReq:
				a.handlePublish(r)
			}
		}
	}
}

func (a *Adapter) handleSubscribe(r subscribeReq) {
	a.mu.Lock()
	if existingConnID, ok := a.connBySubj[r.subject]; ok {
		a.evictLocked(existingConnID)
	}
	a.mu.Unlock()

	subID := uuid.NewString()
	msgCh, err := a.conn.Subscribe(subHeaders(r.subject, subID))
	if err != nil {
		metrics.BrokerErrors.WithLabelValues("subscribe").Inc()
		a.log.Error("broker subscribe failed", logger.String("subject", r.subject), logger.Error(err))
		return
	}

	stopCh := make(chan struct{})
	c := &consumer{subject: r.subject, subID: subID, sink: r.sink, stopCh: stopCh}

	a.mu.Lock()
	a.byConn[r.connID] = c
	a.connBySubj[r.subject] = r.connID
	a.mu.Unlock()

	metrics.BrokerConsumers.Inc()
	go forwardMessages(msgCh, c, stopCh, a.log)
}

func (a *Adapter) handleUnsubscribe(connID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.evictLocked(connID)
}

// evictLocked removes connID's consumer. Caller holds a.mu.
func (a *Adapter) evictLocked(connID string) {
	c, ok := a.byConn[connID]
	if !ok {
		return
	}
	delete(a.byConn, connID)
	if a.connBySubj[c.subject] == connID {
		delete(a.connBySubj, c.subject)
	}

	if err := a.conn.Unsubscribe(stompngo.Headers{stompngo.HK_ID, c.subID}); err != nil {
		metrics.BrokerErrors.WithLabelValues("unsubscribe").Inc()
		a.log.Error("broker unsubscribe failed", logger.String("subject", c.subject), logger.Error(err))
	}
	close(c.stopCh)
	metrics.BrokerConsumers.Dec()
}

func (a *Adapter) handlePublish(r publishReq) {
	err := a.conn.SendBytes(sendHeaders(r.subject, r.replyTo, r.ttl), r.payload)
	if err != nil {
		metrics.BrokerErrors.WithLabelValues("publish").Inc()
		metrics.BrokerPublishes.WithLabelValues("error").Inc()
		a.log.Error("broker publish failed", logger.String("subject", r.subject), logger.Error(err))
		return
	}
	metrics.BrokerPublishes.WithLabelValues("ok").Inc()
}

// forwardMessages reads from the broker's subscription channel and forwards
// each frame to the consumer's sink until stopCh closes. If the sink is
// closed or full, the failure is logged; it is never a reason to tear down
// the broker connection.
func forwardMessages(msgCh <-chan stompngo.MessageData, c *consumer, stopCh <-chan struct{}, log logger.Logger) {
	for {
		select {
		case <-stopCh:
			return
		case md, ok := <-msgCh:
			if !ok {
				return
			}
			if md.Error != nil {
				log.Error("broker delivery error", logger.String("subject", c.subject), logger.Error(md.Error))
				continue
			}
			frame := Frame{Subject: c.subject, Payload: md.Message.Body, ReplyTo: headerValue([]string(md.Message.Headers), "reply-to")}
			delivered := func() (ok bool) {
				// A send on a closed sink panics; recover so it is logged
				// like a full one.
				defer func() {
					if recover() != nil {
						ok = false
					}
				}()
				select {
				case c.sink <- frame:
					return true
				default:
					return false
				}
			}()
			if !delivered {
				log.Error("consumer sink full or closed, dropping frame", logger.String("subject", c.subject))
			}
		}
	}
}

func headerValue(h []string, key string) string {
	for i := 0; i+1 < len(h); i += 2 {
		if h[i] == key {
			return h[i+1]
		}
	}
	return ""
}
