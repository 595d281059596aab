// Package archive persists finalized request traces to SQLite for
// offline inspection. It is wired to the metrics engine as a trace sink:
// every finalized trace is inserted, and a cron-scheduled retention job
// prunes rows older than the configured retention.
//
// The archive is strictly observability storage. Queued requests are
// never persisted; losing the database loses history, not work.
package archive
