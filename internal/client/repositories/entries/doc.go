// Package entries provides the client-side persistence layer for trades and
// strategies.
//
// Each row holds the record JSON next to the columns sync needs to query:
// the collection, the last local modification time, the dirty flag and the
// tombstone flag. Listings skip tombstones; sync reads dirty rows.
//
// The SQLite implementation is bound to a dbx.DBTX, so the same code runs
// against *sql.DB or inside a *sql.Tx.
package entries
