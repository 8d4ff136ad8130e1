// Package local implements the prolink.Backend contract on an embedded
// SQLite database. It mirrors the hosted service's behavior closely
// enough for development and tests: password auth with bcrypt, HS256
// access tokens, an asynchronous profiles trigger and an in-process
// change feed.
package local
