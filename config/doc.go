// Package config loads the agent configuration from YAML and resolves the
// shared secret.
//
// The secret is referenced, not embedded, when possible: a file, an
// environment variable or a Vault KV v2 field. Provider re-resolves it at
// the start of every cycle so rotated secrets take effect without a
// restart, and never keeps a copy.
package config
