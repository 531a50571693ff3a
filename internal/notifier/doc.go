// Package notifier fans numbered findings out to external channels.
//
// # Senders
//
//   - WebhookSender: HTTP POST of a JSON envelope through a small worker
//     pool, with linear-backoff retries on 5xx and connection errors.
//   - RedisSender: PUBLISH of the notification JSON on a channel, optionally
//     also on a per-station channel.
//   - ArchiveSender: INSERT into the SQLite finding archive.
//
// Every sender has a minimum severity. An empty minimum also passes findings
// that carry no severity, such as Success Operation.
//
// # Dispatch
//
// The Dispatcher applies a per-station token bucket before fan-out; findings
// without a station share one "store" bucket. The event log is the system
// of record and is written before dispatch, so suppression only affects
// external channels.
package notifier
