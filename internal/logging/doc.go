// Package logging configures the bot's structured logging.
//
// It builds slog handlers from configuration and fans records out to
// multiple sinks:
//   - Console (compact pretty output)
//   - File (JSON)
//   - Telegram (via the transport adapter) with rate limiting and a
//     minimum level
//
// The Telegram sink is for concise operator visibility; give it an explicit
// chat target and a min_level to keep it quiet.
package logging
