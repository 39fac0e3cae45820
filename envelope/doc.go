// Package envelope is the codec between reports and datagram payloads.
//
// Encoding is compress-then-encrypt, then authenticate:
//
//  1. serialize the report as JSON
//  2. gzip it at best compression, with a fresh compressor per envelope
//  3. seal it with cryptoutils.Seal: [iv][AES-256-CFB8 ciphertext][HMAC-SHA256 tag]
//
// Decoding verifies the tag first and never runs the decompressor on
// unauthenticated bytes.
//
// # Usage Example
//
//	keys, err := cryptoutils.DeriveKeys(secret)
//	if err != nil {
//		return err
//	}
//
//	payload, err := envelope.Encode(interfaces.NewPingReport(ts), keys)
//	...
//	report, err := envelope.Decode(payload, keys)
//	if errors.Is(err, interfaces.ErrAuthentication) {
//		// drop the datagram
//	}
package envelope
