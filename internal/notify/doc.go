// Package notify delivers fired reminders to the chat transport through an
// async pipeline: bounded queue, worker pool, rate limiting, retry with
// jittered backoff, and a short dedup window for identical texts.
package notify
