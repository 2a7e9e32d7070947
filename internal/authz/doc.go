// Package authz owns resource permissions.
//
// Every protected resource has a creator, who is granted Manage when the
// resource is registered. Other subjects hold at most one Permission per
// resource; absence means None. Only an actor holding Manage may grant,
// modify or revoke permissions on a resource, and never their own.
//
// State lives in a SQL database: SQLite through mattn/go-sqlite3 by default,
// or PostgreSQL through the pgx stdlib driver.
package authz
