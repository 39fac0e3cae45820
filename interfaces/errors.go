package interfaces

import "errors"

var (
	// ErrConfig marks an invalid or missing configuration value. Fatal; the
	// operator has to fix the configuration before a retry can help.
	ErrConfig = errors.New("invalid configuration")

	// ErrConnection marks a failure to resolve the collector or to set up
	// the datagram socket. Fatal.
	ErrConnection = errors.New("connection setup failed")

	// ErrPingSend marks a failure to deliver the liveness report. Retryable.
	ErrPingSend = errors.New("ping send failed")

	// ErrSection marks a failure confined to one optional section. It is
	// logged and never escapes the reporter.
	ErrSection = errors.New("section failed")

	// ErrSend is returned by a session when a datagram cannot be written.
	ErrSend = errors.New("datagram send failed")

	// ErrDatagramTooLarge is returned instead of truncating or splitting an
	// envelope that exceeds the session's datagram limit.
	ErrDatagramTooLarge = errors.New("envelope exceeds maximum datagram size")

	// ErrSessionClosed is returned when sending on a closed session.
	ErrSessionClosed = errors.New("session is closed")

	// ErrAuthentication is returned by the decoder when the tag does not
	// verify. The payload has not been decrypted or decompressed.
	ErrAuthentication = errors.New("envelope authentication failed")

	// ErrFormat is returned by the decoder when an authenticated payload is
	// not a compressed report.
	ErrFormat = errors.New("envelope payload malformed")
)
