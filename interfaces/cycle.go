package interfaces

import (
	"encoding/json"
	"fmt"
)

// KeySize is the length in bytes of both derived keys.
const KeySize = 32

// KeyPair holds the symmetric keys derived from the shared secret. It lives
// for one reporting cycle and is never cached, logged or persisted.
type KeyPair struct {
	EncryptionKey     [KeySize]byte
	AuthenticationKey [KeySize]byte
}

// Zero overwrites both keys.
func (k *KeyPair) Zero() {
	for i := range k.EncryptionKey {
		k.EncryptionKey[i] = 0
	}
	for i := range k.AuthenticationKey {
		k.AuthenticationKey[i] = 0
	}
}

// String keeps key material out of formatted output.
func (k KeyPair) String() string {
	return "KeyPair{redacted}"
}

// GoString keeps key material out of %#v output.
func (k KeyPair) GoString() string {
	return k.String()
}

// Outcome is the terminal state of a reporting cycle.
type Outcome int

const (
	// Success means the ping was delivered. Optional sections were each
	// either delivered or skipped.
	Success Outcome = iota
	// RetryableFailure means the ping could not be sent; retry later.
	RetryableFailure
	// FatalFailure means configuration or connection setup failed; do not
	// retry without a configuration change.
	FatalFailure
)

// String returns the outcome name.
func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case RetryableFailure:
		return "retryable_failure"
	case FatalFailure:
		return "fatal_failure"
	default:
		return fmt.Sprintf("unknown(%d)", int(o))
	}
}

// MarshalText lets outcomes appear by name in JSON status documents.
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// CycleResult is the tagged result of one reporting cycle.
type CycleResult struct {
	// Outcome is the terminal state.
	Outcome Outcome
	// Timestamp is the cycle timestamp shared by all reports, in ms.
	Timestamp int64
	// Sent lists the optional sections that were delivered, in send order.
	Sent []Section
	// Failed lists the enabled optional sections that were skipped because
	// of an error.
	Failed []Section
	// Err is the error behind a failure outcome. Nil on Success.
	Err error
}

// MarshalJSON renders the result for the status endpoint.
func (r CycleResult) MarshalJSON() ([]byte, error) {
	var errStr string
	if r.Err != nil {
		errStr = r.Err.Error()
	}

	return json.Marshal(struct {
		Outcome   Outcome   `json:"outcome"`
		Timestamp int64     `json:"ts"`
		Sent      []Section `json:"sent"`
		Failed    []Section `json:"failed"`
		Err       string    `json:"error,omitempty"`
	}{
		Outcome:   r.Outcome,
		Timestamp: r.Timestamp,
		Sent:      r.Sent,
		Failed:    r.Failed,
		Err:       errStr,
	})
}
