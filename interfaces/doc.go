// Package interfaces defines the types and contracts shared by the telemetry
// agent, its transport and the collector, without implementation details.
//
// # Reports and envelopes
//
//   - Report: the semantic mapping sent in one envelope (cycle timestamp plus
//     at most one Section)
//   - Section: battery, conn_active, loc_gps, loc_net, wifi
//   - KeyPair: the encryption and authentication keys derived from the shared
//     secret for one cycle
//
// # Cycle results
//
// A reporting cycle ends in one of three outcomes, carried in CycleResult:
//
//   - Success: the ping was delivered
//   - RetryableFailure: the ping could not be delivered
//   - FatalFailure: configuration or connection setup failed
//
// # Telemetry sources
//
// BatterySource, ConnectivitySource, LocationSource and WifiSource are the
// platform collaborators. A nil record means "no data", not an error.
//
// # Storage Interfaces
//
// StorageBackend and StorageBackendFactory describe the content-addressed
// archive the collector writes accepted reports and rejected datagrams to.
//
// # Error Types
//
//   - ErrConfig, ErrConnection: fatal cycle errors
//   - ErrPingSend: retryable cycle error
//   - ErrSection: contained to one optional section
//   - ErrSend, ErrDatagramTooLarge, ErrSessionClosed: transport errors
//   - ErrAuthentication, ErrFormat: decoder errors
//   - ErrContentNotFound, ErrBackendUnavailable, ErrInvalidLocationURI: archive errors
package interfaces
