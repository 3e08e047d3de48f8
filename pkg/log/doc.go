// Package log provides structured logging for chronodb using zerolog.
//
// A single global zerolog.Logger is configured once via Init, and
// components pull scoped child loggers via WithComponent plus the
// WithTxID/WithEntity/WithContentHash helpers for the fields that
// recur across the log/index/indexer packages.
package log
