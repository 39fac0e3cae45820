// Package telemetry turns raw platform readings into report sections.
//
// Each optional section has a builder (BatterySection, ConnectivitySection,
// LocationSection, WifiSection) producing the JSON-compatible value sent on
// the wire. Fractional values are rounded half-up with RoundValue: two
// decimals for percentages, four for altitude, accuracy, speed and bearing.
//
// When a collaborator has no data the section is still sent, carrying only
// {"na": true}. Wifi without a scan is sent as an empty list.
//
// Sources bundles the collaborators and dispatches by section name.
// SnapshotSource implements every collaborator on top of a YAML file, for
// hosts where the readings come from an external sampler.
package telemetry
