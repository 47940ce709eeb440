package domain

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
)

// Identity is a user record issued by the server at registration or login.
// PublicKey is hex-encoded SPKI DER and is never mutated after issue.
type Identity struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	PublicKey string `json:"public_key"`
}

// KeyHandle is an imported public key ready for RSA-OAEP encryption.
// Handles are rebuilt from Identity.PublicKey on every process start and are
// never serialised back out.
type KeyHandle struct {
	Key *rsa.PublicKey
}

// Valid reports whether the handle carries a usable key.
func (h KeyHandle) Valid() bool { return h.Key != nil }

// Encrypt seals plaintext with RSA-OAEP over SHA-256 under the handle's key.
// OAEP is randomised, so two calls with the same plaintext yield different
// ciphertexts.
func (h KeyHandle) Encrypt(plaintext []byte) ([]byte, error) {
	if h.Key == nil {
		return nil, ErrCryptoUnavailable
	}
	return rsa.EncryptOAEP(sha256.New(), rand.Reader, h.Key, plaintext, nil)
}

// DirectoryEntry pairs a peer's identity with its imported key handle.
type DirectoryEntry struct {
	Identity Identity
	Key      KeyHandle
}

// Profile is the logged-in identity with its key handle imported.
type Profile struct {
	Identity Identity
	Key      KeyHandle
}

// Envelope is the outbound wire payload for one chat message.
//
// EncryptedContent is the plaintext sealed under the *sender's own* public
// key, not the recipient's. The server holds the matching private key
// material and is the decrypting and verifying party; this shape is the
// protocol contract and must not be "corrected" to recipient-key encryption.
// MessageHash is the lowercase hex SHA-256 of the original plaintext.
type Envelope struct {
	EncryptedContent string `json:"encrypted_content"`
	MessageHash      string `json:"message_hash"`
	SenderID         string `json:"sender_id"`
	RecipientID      string `json:"recipient_id"`
}

// DisplayMessage is a message already rendered plaintext-safe for display,
// either delivered by the server (which decrypts before fan-out) or echoed
// locally on send. ID is the sole deduplication key within a conversation.
// CreatedAt is carried as transmitted; the server's timestamp format is not
// ours to reinterpret.
type DisplayMessage struct {
	ID                string `json:"id"`
	Content           string `json:"content"`
	CreatedAt         string `json:"created_at"`
	SenderID          string `json:"sender_id"`
	SenderUsername    string `json:"sender_username"`
	RecipientID       string `json:"recipient_id"`
	RecipientUsername string `json:"recipient_username"`
	IntegrityValid    bool   `json:"is_integrity_valid"`
}
