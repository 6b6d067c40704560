// Package billing computes per-guest accommodation charges for airline and hotel
// reports: stay-day counting, meal pricing and room cost sharing between guests
// occupying the same room. The package performs no I/O.
package billing
