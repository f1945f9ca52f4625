// Package core holds the book exchange domain: matches, reciprocal matching,
// the exchange state machine and reputation updates, together with the storage
// contracts they run against. Storage and transport adapters depend on this
// package, never the other way round.
package core
