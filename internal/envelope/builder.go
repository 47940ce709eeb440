// Package envelope builds the encrypted wire payload for outbound messages.
package envelope

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"

	"safechat/internal/domain"
)

// Build produces the wire envelope for one chat message.
//
// The content hash and the ciphertext are computed independently from the
// same plaintext: the hash lets the server verify integrity after it has
// decrypted the content. The plaintext is sealed under the sender's own
// public key; the server, holding the matching private key, is the
// decrypting party. Build has no side effects.
func Build(plaintext string, senderKey domain.KeyHandle, senderID, recipientID string) (domain.Envelope, error) {
	if !senderKey.Valid() {
		return domain.Envelope{}, domain.ErrCryptoUnavailable
	}

	digest := sha256.Sum256([]byte(plaintext))

	ciphertext, err := senderKey.Encrypt([]byte(plaintext))
	if err != nil {
		return domain.Envelope{}, fmt.Errorf("encrypt content: %w", err)
	}

	return domain.Envelope{
		EncryptedContent: base64.StdEncoding.EncodeToString(ciphertext),
		MessageHash:      hex.EncodeToString(digest[:]),
		SenderID:         senderID,
		RecipientID:      recipientID,
	}, nil
}
