// Package model defines shared data types used across the poker ledger service.
//
// Conventions:
//   - Money: decimal.Decimal, two fractional digits, never float64
//   - Dates: time.Time at UTC midnight for calendar dates
//   - IDs: uuid.UUID for players and ledger entries, GameKey for games
package model
