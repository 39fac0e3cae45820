// Command telemetry-collector receives telemetry envelopes over UDP,
// verifies and decodes them, and archives accepted reports to file, S3 or
// IPFS backends. --metrics-addr exports its counters to Prometheus.
//
// The decode command verifies a single datagram, either a captured file
// (--file) or a rejected datagram fetched back from the archive
// (--id <content id> --archive <uri>), for instance after a secret fix.
package main
