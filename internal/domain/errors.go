package domain

import "errors"

var (
	// ErrKeyFormat is returned when public key material does not decode into
	// a structurally valid key. Fatal to the login attempt that produced it;
	// when raised for persisted credentials the stored record is discarded.
	ErrKeyFormat = errors.New("malformed public key material")

	// ErrCryptoUnavailable is returned when an envelope is requested with no
	// sender key present. The message is not sent and the caller keeps its
	// compose buffer.
	ErrCryptoUnavailable = errors.New("no sender key imported")

	// ErrTransportNotReady is returned when a send is attempted while the
	// session is not open. The message is not sent and the caller keeps its
	// compose buffer.
	ErrTransportNotReady = errors.New("transport not ready")

	// ErrRemoteRequest wraps any data-API fetch failure. State accumulated
	// before the failure is preserved, never rolled back.
	ErrRemoteRequest = errors.New("remote request failed")
)

// ServerError is an ERROR frame pushed by the server over the live
// connection. It is surfaced to the user; the connection stays open.
type ServerError struct {
	Message string
}

func (e *ServerError) Error() string { return "server reported: " + e.Message }
