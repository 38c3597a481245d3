// Package ledger parses poker ledger CSV exports into typed records.
//
// A Schema names the columns a ledger must (or may) carry. It is bound once per
// file against the header row, producing a Binding that turns each data row
// into a Record or a *MalformedRowError. Parsing has no knowledge of other rows
// and no side effects.
//
// Accepted exports include the PokerNow ledger layout:
//
//	player_nickname,player_id,session_start_at,session_end_at,buy_in,buy_out,stack,net
package ledger
