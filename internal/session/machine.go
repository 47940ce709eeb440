// Package session owns the transport lifecycle for the logged-in identity.
//
// The machine moves between Disconnected, Connecting and Open, dispatches
// decoded inbound frames to the conversation store and the directory cache,
// and gates outbound sends on transport readiness. It does not implement
// reconnection itself: the underlying transport redials on its own, and the
// machine only reacts to the lifecycle callbacks, treating every open as a
// cue to resynchronise the directory.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"safechat/internal/conversation"
	"safechat/internal/directory"
	"safechat/internal/domain"
)

// State is the connection state of the session.
type State int

const (
	Disconnected State = iota
	Connecting
	Open
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Open:
		return "open"
	default:
		return "disconnected"
	}
}

const defaultFetchTimeout = 15 * time.Second

// Config wires the machine's collaborators.
type Config struct {
	// BaseURL is the websocket base; the machine connects to
	// BaseURL/<user id>.
	BaseURL string

	API domain.APIClient

	// NewTransport builds a fresh transport per login; a transport is
	// terminal once closed, so logout/login cycles need new instances.
	NewTransport func() domain.Transport

	Directory     *directory.Cache
	Conversations *conversation.Store

	Log *slog.Logger

	// FetchTimeout bounds the directory fetch triggered by each open.
	FetchTimeout time.Duration
}

// Machine is the session state machine. At most one transport exists per
// logged-in identity; switching the active peer never touches it.
type Machine struct {
	cfg Config
	log *slog.Logger

	mu        sync.Mutex
	state     State
	userID    string
	transport domain.Transport
	gen       int // bumped on login and logout; stale fetches check it

	onChange func()
	notify   func(err error)
}

// New returns a disconnected machine.
func New(cfg Config) *Machine {
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = defaultFetchTimeout
	}
	return &Machine{cfg: cfg, log: cfg.Log}
}

// SetObserver registers callbacks for the UI: onChange fires after any
// state or store mutation, notify surfaces non-fatal errors. Logout
// deregisters both.
func (m *Machine) SetObserver(onChange func(), notify func(err error)) {
	m.mu.Lock()
	m.onChange = onChange
	m.notify = notify
	m.mu.Unlock()
}

// State returns the current connection state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// UserID returns the logged-in user id, or "" when disconnected.
func (m *Machine) UserID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.userID
}

// Login opens the transport for userID. It fails if a session is already
// active; there is never more than one live transport.
func (m *Machine) Login(userID string) error {
	m.mu.Lock()
	if m.state != Disconnected {
		active := m.userID
		m.mu.Unlock()
		return fmt.Errorf("session already active for %q", active)
	}
	tr := m.cfg.NewTransport()
	m.state = Connecting
	m.userID = userID
	m.transport = tr
	m.gen++
	m.mu.Unlock()

	err := tr.Connect(m.cfg.BaseURL+"/"+userID, domain.TransportHandlers{
		OnOpen:    m.handleOpen,
		OnMessage: m.handleMessage,
		OnClose:   m.handleClose,
		OnError:   m.handleError,
	})
	if err != nil {
		m.mu.Lock()
		m.state = Disconnected
		m.userID = ""
		m.transport = nil
		m.mu.Unlock()
		return fmt.Errorf("connect transport: %w", err)
	}
	m.changed()
	return nil
}

// Send transmits an envelope as a CHAT_MESSAGE frame. Only permitted while
// Open; callers must surface the failure and keep their compose buffer.
func (m *Machine) Send(env domain.Envelope) error {
	m.mu.Lock()
	if m.state != Open {
		m.mu.Unlock()
		return domain.ErrTransportNotReady
	}
	tr := m.transport
	m.mu.Unlock()

	data, err := domain.EncodeChatFrame(env)
	if err != nil {
		return err
	}
	return tr.Send(data)
}

// Logout closes the transport, deregisters observers and clears both
// stores. Calling it while already disconnected is a no-op.
func (m *Machine) Logout() {
	m.mu.Lock()
	if m.state == Disconnected {
		m.mu.Unlock()
		return
	}
	tr := m.transport
	m.state = Disconnected
	m.userID = ""
	m.transport = nil
	m.gen++
	m.onChange = nil
	m.notify = nil
	m.mu.Unlock()

	if tr != nil {
		_ = tr.Close()
	}
	m.cfg.Directory.Clear()
	m.cfg.Conversations.Reset("")
}

func (m *Machine) handleOpen() {
	m.mu.Lock()
	if m.state == Disconnected {
		// Open raced a logout; the transport is already being torn down.
		m.mu.Unlock()
		return
	}
	m.state = Open
	gen := m.gen
	m.mu.Unlock()

	m.log.Info("session open", "user_id", m.UserID())
	m.changed()

	// The directory fetch must not block the event loop: later frames may
	// arrive before it resolves, and lookups tolerate absence meanwhile.
	go m.syncDirectory(gen)
}

// syncDirectory fetches the user list and seeds the directory, unless the
// session has moved on since the fetch was triggered.
func (m *Machine) syncDirectory(gen int) {
	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.FetchTimeout)
	defer cancel()

	users, err := m.cfg.API.ListUsers(ctx)
	if err != nil {
		m.log.Warn("directory fetch failed", "error", err)
		m.notifyErr(err)
		return
	}

	m.mu.Lock()
	stale := gen != m.gen || m.state != Open
	selfID := m.userID
	m.mu.Unlock()
	if stale {
		return
	}

	m.cfg.Directory.Load(users, selfID)
	m.changed()
}

// handleMessage decodes one inbound frame and dispatches it. The closed
// frame set makes the match exhaustive.
func (m *Machine) handleMessage(data []byte) {
	frame, err := domain.DecodeFrame(data)
	if err != nil {
		m.log.Warn("dropping undecodable frame", "error", err)
		return
	}

	switch f := frame.(type) {
	case domain.ChatMessageFrame:
		m.mu.Lock()
		localID := m.userID
		m.mu.Unlock()
		if !conversation.IsRelevant(f.Message, localID, m.cfg.Conversations.ActivePeer()) {
			return
		}
		if m.cfg.Conversations.AppendIfNew(f.Message) {
			m.changed()
		}

	case domain.NewUserFrame:
		if m.cfg.Directory.Upsert(f.User) {
			m.changed()
		}

	case domain.ErrorFrame:
		// Non-fatal: surface it, stay open.
		m.notifyErr(&domain.ServerError{Message: f.Message})

	case domain.UnknownFrame:
		m.log.Warn("ignoring unrecognized frame", "type", f.Type)
	}
}

func (m *Machine) handleClose(err error) {
	m.mu.Lock()
	if m.state == Disconnected {
		m.mu.Unlock()
		return
	}
	// The transport redials on its own; reflect that we are between
	// connections so sends are rejected until the next open.
	m.state = Connecting
	m.mu.Unlock()

	m.log.Info("session connection dropped", "error", err)
	m.changed()
}

func (m *Machine) handleError(err error) {
	m.log.Warn("transport error", "error", err)
}

func (m *Machine) changed() {
	m.mu.Lock()
	cb := m.onChange
	m.mu.Unlock()
	if cb != nil {
		cb()
	}
}

func (m *Machine) notifyErr(err error) {
	m.mu.Lock()
	cb := m.notify
	m.mu.Unlock()
	if cb != nil {
		cb(err)
	}
}
