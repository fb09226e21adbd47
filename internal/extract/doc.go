// Package extract turns natural-language alarm requests into structured
// answers via narrow, single-question model calls: action classification,
// alarm message, alarm type, absolute date, cron expression, and target
// schedule id.
//
// The Extractor interface is the seam the agent core depends on; the genkit
// implementation is the production backend and tests substitute fakes.
package extract
