// Package database provides the PostgreSQL connection pool behind the
// postgres store driver.
//
// Pools are sized from config and verified with a ping before use. A
// configured statement_timeout is applied to every connection, which is the
// only place query timeouts are enforced.
package database
