// Package transport implements the persistent, auto-reconnecting websocket
// channel the session rides on.
//
// The transport mirrors the behavior of a reconnecting browser socket: it
// dials, delivers frames in arrival order, and on abnormal close redials on
// its own with exponential backoff and jitter. Every successful redial
// fires OnOpen again, which the session treats as a cue to resynchronise.
// All handler callbacks are invoked from a single goroutine and run to
// completion before the next event is delivered.
package transport

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"safechat/internal/domain"
)

const (
	defaultRedialMin = time.Second
	defaultRedialMax = 10 * time.Second
	redialGrowth     = 1.3
	writeWait        = 10 * time.Second
	handshakeTimeout = 10 * time.Second
)

// Reconnecting is a websocket transport that survives connection drops.
// Connect may be called once; Close is terminal.
type Reconnecting struct {
	// RedialMin and RedialMax bound the backoff between dial attempts.
	// Adjust before Connect; afterwards they are read by the run loop.
	RedialMin time.Duration
	RedialMax time.Duration

	dialer *websocket.Dialer
	log    *slog.Logger

	mu     sync.Mutex
	conn   *websocket.Conn
	open   bool
	closed bool
	cancel context.CancelFunc
	done   chan struct{}
}

// NewReconnecting returns an unconnected transport. A nil logger falls back
// to slog.Default.
func NewReconnecting(log *slog.Logger) *Reconnecting {
	if log == nil {
		log = slog.Default()
	}
	return &Reconnecting{
		RedialMin: defaultRedialMin,
		RedialMax: defaultRedialMax,
		dialer:    &websocket.Dialer{HandshakeTimeout: handshakeTimeout},
		log:       log,
	}
}

// Connect starts the dial/read loop against url. It returns immediately;
// connection progress is reported through the handlers.
func (t *Reconnecting) Connect(url string, handlers domain.TransportHandlers) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return errors.New("transport closed")
	}
	if t.done != nil {
		return errors.New("transport already connected")
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel
	t.done = make(chan struct{})
	go t.run(ctx, url, handlers)
	return nil
}

// Send writes one text frame. It fails with domain.ErrTransportNotReady
// while the socket is down or redialling.
func (t *Reconnecting) Send(data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.open || t.conn == nil {
		return domain.ErrTransportNotReady
	}
	_ = t.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return t.conn.WriteMessage(websocket.TextMessage, data)
}

// Close stops redialling and tears the connection down. Idempotent.
func (t *Reconnecting) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	cancel, done := t.cancel, t.done
	t.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	return nil
}

func (t *Reconnecting) run(ctx context.Context, url string, handlers domain.TransportHandlers) {
	defer close(t.done)

	delay := t.RedialMin
	for {
		conn, resp, err := t.dialer.DialContext(ctx, url, nil)
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			t.log.Warn("websocket dial failed", "url", url, "error", err)
			if handlers.OnError != nil {
				handlers.OnError(err)
			}
			if !t.sleep(ctx, delay) {
				return
			}
			delay = t.grow(delay)
			continue
		}

		t.mu.Lock()
		t.conn = conn
		t.open = true
		t.mu.Unlock()
		delay = t.RedialMin

		if handlers.OnOpen != nil {
			handlers.OnOpen()
		}

		readErr := t.readLoop(ctx, conn, handlers)

		t.mu.Lock()
		t.open = false
		t.conn = nil
		t.mu.Unlock()

		if handlers.OnClose != nil {
			handlers.OnClose(readErr)
		}
		if ctx.Err() != nil {
			return
		}
		t.log.Info("websocket dropped, redialling", "url", url, "error", readErr)
		if !t.sleep(ctx, delay) {
			return
		}
		delay = t.grow(delay)
	}
}

// readLoop delivers inbound frames until the connection fails or ctx ends.
func (t *Reconnecting) readLoop(ctx context.Context, conn *websocket.Conn, handlers domain.TransportHandlers) error {
	readDone := make(chan struct{})
	defer close(readDone)
	go func() {
		select {
		case <-ctx.Done():
			// Nudge the peer, then force the blocked ReadMessage to return.
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			_ = conn.Close()
		case <-readDone:
			_ = conn.Close()
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		if handlers.OnMessage != nil {
			handlers.OnMessage(data)
		}
	}
}

// sleep waits out the backoff delay plus jitter; false means ctx ended.
func (t *Reconnecting) sleep(ctx context.Context, delay time.Duration) bool {
	jitter := time.Duration(0)
	if delay > 1 {
		jitter = rand.N(delay / 2)
	}
	timer := time.NewTimer(delay + jitter)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (t *Reconnecting) grow(delay time.Duration) time.Duration {
	next := time.Duration(float64(delay) * redialGrowth)
	if next > t.RedialMax {
		next = t.RedialMax
	}
	return next
}

var _ domain.Transport = (*Reconnecting)(nil)
