// Package keycodec converts between the hex-encoded key-exchange format and
// in-memory encryption-capable key handles.
//
// The server publishes public keys as hex-encoded SPKI DER. Import parses
// that material into a domain.KeyHandle for RSA-OAEP encryption. Import is
// pure and deterministic; two imports of the same material yield equivalent
// handles.
package keycodec

import (
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"fmt"

	"safechat/internal/domain"
)

// Import decodes hex-encoded SPKI key material into a usable handle.
// Odd-length hex, non-hex digits, undecodable DER and non-RSA keys all fail
// with domain.ErrKeyFormat.
func Import(hexKey string) (domain.KeyHandle, error) {
	if len(hexKey)%2 != 0 {
		return domain.KeyHandle{}, fmt.Errorf("%w: odd-length hex", domain.ErrKeyFormat)
	}
	der, err := hex.DecodeString(hexKey)
	if err != nil {
		return domain.KeyHandle{}, fmt.Errorf("%w: %v", domain.ErrKeyFormat, err)
	}
	pub, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return domain.KeyHandle{}, fmt.Errorf("%w: %v", domain.ErrKeyFormat, err)
	}
	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return domain.KeyHandle{}, fmt.Errorf("%w: not an RSA key (%T)", domain.ErrKeyFormat, pub)
	}
	return domain.KeyHandle{Key: rsaPub}, nil
}

// Fingerprint returns a short hex fingerprint of hex-encoded key material
// for display and logging. It hashes the DER bytes with SHA-256 and
// truncates to 10 bytes (20 hex chars). Malformed input yields "".
func Fingerprint(hexKey string) string {
	der, err := hex.DecodeString(hexKey)
	if err != nil || len(der) == 0 {
		return ""
	}
	sum := sha256.Sum256(der)
	return hex.EncodeToString(sum[:10])
}
