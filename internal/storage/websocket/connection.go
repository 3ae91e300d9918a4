package websocket

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/volleyworks/volley/pkg/streaming"
)

const (
	sendChSize   = 10_000
	ackChSize    = 16
	maxReconnect = 10
	maxBackoff   = 30 * time.Second
	writeWait    = 10 * time.Second
	ackTimeout   = 10 * time.Second
)

// connection streams frames over one socket at a time. A single supervisor
// goroutine owns the socket: it is the only writer, and it replaces the
// socket when either direction fails.
type connection struct {
	sendCh  chan []byte
	ackCh   chan streaming.AckMessage
	done    chan struct{}
	stopped chan struct{}

	mu          sync.Mutex
	started     bool
	closed      bool
	cachedStart []byte // replayed on every new socket
	closeErr    error

	wsURL string
	auth  dialAuth
	codec streaming.Codec

	dropped atomic.Uint64
	backoff time.Duration

	logger *slog.Logger
}

func newConnection(logger *slog.Logger) *connection {
	return &connection{
		sendCh:  make(chan []byte, sendChSize),
		ackCh:   make(chan streaming.AckMessage, ackChSize),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
		codec:   streaming.JSON,
		backoff: time.Second,
		logger:  logger,
	}
}

// dial opens the first socket synchronously so configuration errors surface
// to the caller, then hands it to the supervisor.
func (c *connection) dial(rawURL string, auth dialAuth) error {
	c.wsURL, c.auth = rawURL, auth

	conn, err := c.open()
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return conn.Close()
	}
	c.started = true
	c.mu.Unlock()

	c.logger.Info("WebSocket connected", "url", rawURL)
	go c.supervise(conn)
	return nil
}

func (c *connection) open() (*ws.Conn, error) {
	u, err := url.Parse(c.wsURL)
	if err != nil {
		return nil, fmt.Errorf("invalid websocket URL: %w", err)
	}
	header := http.Header{}
	if c.auth != nil {
		if err := c.auth(u, header); err != nil {
			return nil, err
		}
	}

	conn, _, err := ws.DefaultDialer.Dial(u.String(), header)
	if err != nil {
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}
	return conn, nil
}

func (c *connection) supervise(conn *ws.Conn) {
	defer close(c.stopped)

	for conn != nil {
		lost := make(chan error, 1)
		go c.readAcks(conn, lost)

		err := c.pump(conn, lost)
		if err == nil {
			c.setCloseErr(c.shutdown(conn))
			return
		}
		c.logger.Warn("WebSocket connection lost", "error", err)
		_ = conn.Close()
		conn = c.redial()
	}
}

// pump writes queued frames until the socket fails or the connection is
// closed. A nil return means shutdown.
func (c *connection) pump(conn *ws.Conn, lost <-chan error) error {
	for {
		select {
		case <-c.done:
			return nil
		case err := <-lost:
			return err
		case data := <-c.sendCh:
			if err := writeFrame(conn, c.frameKind(), data); err != nil {
				return err
			}
		}
	}
}

// readAcks forwards server acks and reports the first read error on lost.
func (c *connection) readAcks(conn *ws.Conn, lost chan<- error) {
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			lost <- err
			return
		}

		var ack streaming.AckMessage
		if c.codec.Decode(message, &ack) != nil || ack.Type != "ack" {
			c.logger.Debug("Ignoring non-ack message", "raw", string(message))
			continue
		}
		select {
		case c.ackCh <- ack:
		default:
			c.logger.Debug("Ack channel full, dropping", "for", ack.For)
		}
	}
}

// redial returns a fresh socket with the start_session frame already
// replayed, or nil once closed or out of attempts.
func (c *connection) redial() *ws.Conn {
	wait := c.backoff
	for attempt := 1; attempt <= maxReconnect; attempt++ {
		c.logger.Info("Reconnecting to WebSocket", "attempt", attempt, "backoff", wait)

		timer := time.NewTimer(wait)
		select {
		case <-c.done:
			timer.Stop()
			return nil
		case <-timer.C:
		}
		wait = min(wait*2, maxBackoff)

		conn, err := c.open()
		if err != nil {
			c.logger.Warn("Reconnect dial failed", "attempt", attempt, "error", err)
			continue
		}

		c.mu.Lock()
		cached, closed := c.cachedStart, c.closed
		c.mu.Unlock()
		if closed {
			_ = conn.Close()
			return nil
		}

		if cached != nil {
			if err := writeFrame(conn, c.frameKind(), cached); err != nil {
				c.logger.Warn("Failed to replay start_session", "attempt", attempt, "error", err)
				_ = conn.Close()
				continue
			}
		}

		c.logger.Info("WebSocket reconnected", "attempt", attempt)
		return conn
	}

	c.logger.Error("WebSocket reconnect failed after max attempts", "maxAttempts", maxReconnect)
	return nil
}

func (c *connection) shutdown(conn *ws.Conn) error {
	_ = writeFrame(conn, ws.CloseMessage, ws.FormatCloseMessage(ws.CloseNormalClosure, ""))
	return conn.Close()
}

func (c *connection) frameKind() int {
	if c.codec.Binary() {
		return ws.BinaryMessage
	}
	return ws.TextMessage
}

func writeFrame(conn *ws.Conn, kind int, data []byte) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteMessage(kind, data)
}

func (c *connection) setCloseErr(err error) {
	c.mu.Lock()
	c.closeErr = err
	c.mu.Unlock()
}

// setCachedStart stores the frame replayed on reconnect. nil clears it.
func (c *connection) setCachedStart(data []byte) {
	c.mu.Lock()
	c.cachedStart = data
	c.mu.Unlock()
}

// send queues data without blocking. Frames that do not fit are counted and
// dropped.
func (c *connection) send(data []byte) {
	select {
	case c.sendCh <- data:
	default:
		n := c.dropped.Add(1)
		c.logger.Warn("WebSocket send channel full, dropping message", "dropped", n)
	}
}

// sendAndWait queues data and blocks until the server acks ackFor.
func (c *connection) sendAndWait(data []byte, ackFor string, timeout time.Duration) error {
	c.send(data)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case ack := <-c.ackCh:
			if ack.For == ackFor {
				return nil
			}
		case <-timer.C:
			return fmt.Errorf("timeout waiting for ack of %q", ackFor)
		case <-c.done:
			return fmt.Errorf("connection closed while waiting for ack of %q", ackFor)
		}
	}
}

// close stops the supervisor and waits for it to send a close frame.
func (c *connection) close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	started := c.started
	close(c.done)
	c.mu.Unlock()

	if !started {
		return nil
	}
	<-c.stopped

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeErr
}
