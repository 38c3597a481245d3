// Package identity resolves raw player names from ledgers to canonical players.
//
// Resolution is an exact lookup of the normalized name in the alias table.
// There is no fuzzy matching: an unseen spelling either registers a new
// player (ModeAuto) or is reported back for an operator to map (ModeStrict).
package identity
