// Package stats maintains cached per-creator earnings and membership
// counters. The numbers are derived from the ledger and membership tables and
// refreshed after every charge, so reads never aggregate on the hot path.
package stats
