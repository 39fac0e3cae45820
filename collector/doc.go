// Package collector is the receiving end of the telemetry protocol.
//
// Every datagram is one envelope. The collector verifies the tag before
// anything else, then decompresses and parses the report. Datagrams that
// fail authentication or parsing are counted, logged and dropped. The
// loop never stops on a bad datagram.
//
// Accepted reports are archived as JSON records (receive time, source
// address, kind, report) in a storage backend. Identical envelopes sent
// twice are accepted twice; the protocol carries no replay protection.
package collector
