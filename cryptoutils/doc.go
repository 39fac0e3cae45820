// Package cryptoutils implements the cryptographic layer of the telemetry
// envelope: key derivation from the shared secret and the
// encrypt-then-authenticate framing.
//
// # Key Derivation
//
// DeriveKeys maps one shared secret to two keys:
//
//	encryptionKey     = SHA256(secret)
//	authenticationKey = SHA256(encryptionKey)
//
// # Envelope Format
//
//	[iv (16 bytes)][ciphertext][tag (32 bytes)]
//
// Where:
//   - IV: fresh random bytes for every envelope, the initial CFB register
//   - Ciphertext: AES-256 in CFB-8 mode, same length as the payload
//   - Tag: HMAC-SHA256(authenticationKey, iv || ciphertext)
//
// Open checks the tag in constant time before decrypting. Nothing binds the
// tag to a sequence number or session, so captured envelopes can be replayed
// to a collector; receivers that care must deduplicate on the report
// timestamp themselves.
package cryptoutils
