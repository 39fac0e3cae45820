package cryptoutils

import (
	"crypto/aes"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"github.com/ruteri/telemetry-envelope/interfaces"
)

const (
	// IVSize is the length of the random IV prefix.
	IVSize = aes.BlockSize
	// TagSize is the length of the HMAC-SHA256 suffix.
	TagSize = sha256.Size
	// Overhead is the number of bytes Seal adds to a payload.
	Overhead = IVSize + TagSize
)

// Seal encrypts payload with AES-256-CFB8 under a fresh random IV and
// authenticates the result with HMAC-SHA256.
//
// Format: [iv (16 bytes)][ciphertext (len(payload))][tag (32 bytes)]
//
// The tag covers iv||ciphertext, never the plaintext.
func Seal(keys interfaces.KeyPair, payload []byte) ([]byte, error) {
	return seal(rand.Reader, keys, payload)
}

func seal(random io.Reader, keys interfaces.KeyPair, payload []byte) ([]byte, error) {
	block, err := aes.NewCipher(keys.EncryptionKey[:])
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	out := make([]byte, IVSize+len(payload), IVSize+len(payload)+TagSize)
	iv := out[:IVSize]
	if _, err := io.ReadFull(random, iv); err != nil {
		return nil, fmt.Errorf("failed to generate IV: %w", err)
	}

	NewCFB8Encrypter(block, iv).XORKeyStream(out[IVSize:], payload)

	return append(out, computeTag(keys, out)...), nil
}

// Open verifies the tag of an envelope produced by Seal and only then
// decrypts it. A tag mismatch returns ErrAuthentication without touching
// the ciphertext.
func Open(keys interfaces.KeyPair, envelope []byte) ([]byte, error) {
	if len(envelope) < Overhead {
		return nil, fmt.Errorf("%w: envelope of %d bytes is shorter than %d", interfaces.ErrAuthentication, len(envelope), Overhead)
	}

	tagStart := len(envelope) - TagSize
	authenticated := envelope[:tagStart]
	if !hmac.Equal(computeTag(keys, authenticated), envelope[tagStart:]) {
		return nil, interfaces.ErrAuthentication
	}

	block, err := aes.NewCipher(keys.EncryptionKey[:])
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	iv := authenticated[:IVSize]
	ciphertext := authenticated[IVSize:]
	payload := make([]byte, len(ciphertext))
	NewCFB8Decrypter(block, iv).XORKeyStream(payload, ciphertext)

	return payload, nil
}

func computeTag(keys interfaces.KeyPair, ivAndCiphertext []byte) []byte {
	mac := hmac.New(sha256.New, keys.AuthenticationKey[:])
	mac.Write(ivAndCiphertext)
	return mac.Sum(nil)
}
