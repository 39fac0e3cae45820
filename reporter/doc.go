// Package reporter orchestrates one reporting cycle: validate the
// configuration, derive the keys, open a session, send the mandatory ping,
// then send each enabled optional section, and close.
//
// The ping acts as a circuit breaker. If it cannot be delivered the cycle
// ends with RetryableFailure and no optional section is attempted. Once it
// is delivered, optional sections fail independently of each other and
// never change the outcome; they are reported in CycleResult.Failed.
//
// Sections go out in a fixed order: battery, conn_active, loc_gps, loc_net,
// wifi. Every report of a cycle shares the cycle timestamp.
//
// A cycle is synchronous. Context cancellation is checked before each
// send; the session is closed on every path that opened it.
package reporter
