// Package supabase implements the prolink.Backend contract against the
// hosted Supabase service: GoTrue auth, PostgREST tables, the realtime
// change feed and object storage.
package supabase
