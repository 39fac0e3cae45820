package cryptoutils

import (
	"crypto/sha256"
	"fmt"

	"github.com/ruteri/telemetry-envelope/interfaces"
)

// DeriveKeys turns the shared secret into the per-cycle key pair:
//
//	encryptionKey     = SHA256(secret)
//	authenticationKey = SHA256(encryptionKey)
//
// The derivation is fixed by the wire format; collectors derive the same
// pair from the same secret. An empty secret is a configuration error.
func DeriveKeys(secret []byte) (interfaces.KeyPair, error) {
	if len(secret) == 0 {
		return interfaces.KeyPair{}, fmt.Errorf("%w: empty shared secret", interfaces.ErrConfig)
	}

	var keys interfaces.KeyPair
	keys.EncryptionKey = sha256.Sum256(secret)
	keys.AuthenticationKey = sha256.Sum256(keys.EncryptionKey[:])
	return keys, nil
}
