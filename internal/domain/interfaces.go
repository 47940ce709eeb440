package domain

import "context"

// APIClient is the request/response data API the client depends on.
type APIClient interface {
	// RegisterOrLogin exchanges credentials for the caller's identity.
	RegisterOrLogin(ctx context.Context, username, password string) (Identity, error)

	// ListUsers returns every known identity, including the caller's own.
	ListUsers(ctx context.Context) ([]Identity, error)

	// ListMessages returns the conversation history between two users in
	// server order.
	ListMessages(ctx context.Context, localID, peerID string) ([]DisplayMessage, error)
}

// TransportHandlers receive transport lifecycle events. Implementations of
// Transport invoke them from a single goroutine; each call runs to
// completion before the next event is delivered.
type TransportHandlers struct {
	// OnOpen fires on every successful (re)connect. A reconnect may lose
	// pushed frames, so each open is a cue to resynchronise.
	OnOpen func()

	// OnMessage delivers raw text frames in arrival order.
	OnMessage func(data []byte)

	// OnClose fires when the connection drops; the transport redials on its
	// own unless it has been closed.
	OnClose func(err error)

	// OnError reports dial and protocol errors that do not end the
	// transport's lifecycle.
	OnError func(err error)
}

// Transport is a persistent, auto-reconnecting bidirectional message
// channel. Connect may be called once; Close is terminal and idempotent.
type Transport interface {
	Connect(url string, handlers TransportHandlers) error
	Send(data []byte) error
	Close() error
}

// CredentialStore persists the logged-in identity across process restarts.
// Absence of a stored record means "not logged in".
type CredentialStore interface {
	Save(passphrase string, id Identity) error
	Load(passphrase string) (Identity, bool, error)
	Clear() error
}
