// Package reliable implements stop-and-wait delivery on top of a shared
// UDP socket. Outbound messages are stamped with a sequence number and
// retransmitted until a matching ACK arrives or the retry budget runs out.
package reliable

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"pokeduel/internal/protocol"
)

const (
	// DefaultAckTimeout is how long one attempt waits for its ACK.
	DefaultAckTimeout = 500 * time.Millisecond
	// DefaultMaxAttempts is the total number of transmissions per message.
	DefaultMaxAttempts = 3

	inboxSize = 32
)

// ErrDeliveryFailed reports that every transmission attempt timed out.
// The session treats this as fatal once a battle is underway.
var ErrDeliveryFailed = errors.New("delivery failed after retries")

// Channel serializes reliable sends over one UDP socket. The owner's receive
// loop routes inbound ACKs here via Deliver; Channel never reads the socket
// itself.
type Channel struct {
	conn     *net.UDPConn
	timeout  time.Duration
	attempts int
	logger   *slog.Logger

	mu    sync.Mutex // one reliable exchange in flight at a time
	next  atomic.Uint64
	inbox chan protocol.Message
}

// NewChannel wraps conn with stop-and-wait semantics. Zero timeout or
// attempts select the protocol defaults.
func NewChannel(conn *net.UDPConn, timeout time.Duration, attempts int, logger *slog.Logger) *Channel {
	if timeout <= 0 {
		timeout = DefaultAckTimeout
	}
	if attempts <= 0 {
		attempts = DefaultMaxAttempts
	}
	if logger == nil {
		logger = slog.Default()
	}
	c := &Channel{
		conn:     conn,
		timeout:  timeout,
		attempts: attempts,
		logger:   logger.With("component", "reliable"),
		inbox:    make(chan protocol.Message, inboxSize),
	}
	c.next.Store(1)
	return c
}

// NextSequence returns the sequence number the next send will use.
func (c *Channel) NextSequence() uint64 {
	return c.next.Load()
}

// Deliver hands an inbound ACK to the channel. It never blocks; a full inbox
// drops the ACK, which at worst costs one retransmission.
func (c *Channel) Deliver(m protocol.Message) {
	select {
	case c.inbox <- m:
	default:
		c.logger.Warn("ack inbox full, dropping", "ack_number", m[protocol.FieldAckNumber])
	}
}

// Send stamps msg with the current sequence number and transmits it to dst,
// retrying on ACK timeout. The sequence counter only advances after a
// confirmed delivery, so a failed message's number is reused by the next
// attempt to send.
func (c *Channel) Send(msg protocol.Message, dst *net.UDPAddr) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	seq := c.next.Load()
	msg[protocol.FieldSequence] = strconv.FormatUint(seq, 10)
	data, err := protocol.Encode(msg)
	if err != nil {
		return fmt.Errorf("encode outbound message: %w", err)
	}

	for attempt := 1; attempt <= c.attempts; attempt++ {
		if _, err := c.conn.WriteToUDP(data, dst); err != nil {
			return fmt.Errorf("send attempt %d: %w", attempt, err)
		}
		if c.waitForAck(seq) {
			c.next.Add(1)
			return nil
		}
		c.logger.Warn("ack timeout",
			"type", msg.Type(),
			"sequence", seq,
			"attempt", attempt,
			"of", c.attempts)
	}
	return fmt.Errorf("sequence %d (%s): %w", seq, msg.Type(), ErrDeliveryFailed)
}

// waitForAck blocks until an ACK matching seq arrives or the attempt times
// out. ACKs for other sequence numbers are pushed back to the inbox rather
// than discarded.
func (c *Channel) waitForAck(seq uint64) bool {
	var passedOver []protocol.Message
	defer func() {
		for _, m := range passedOver {
			c.Deliver(m)
		}
	}()

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	for {
		select {
		case m := <-c.inbox:
			n, err := strconv.ParseUint(m[protocol.FieldAckNumber], 10, 64)
			if err == nil && n == seq {
				return true
			}
			passedOver = append(passedOver, m)
		case <-timer.C:
			return false
		}
	}
}
