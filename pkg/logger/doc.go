// Package logger provides a structured logging interface for cyarchive.
//
// It wraps zerolog behind the small Logger interface so components can take a
// logger as a dependency and tests can swap in NewTestLogger or NewNopLogger.
//
//	logger.Initialize(&cfg.Logging)
//	logger.WithField("content_id", id).Info("Post archived")
//
// Console output goes to stderr so it never mixes with progress lines on
// stdout. When LoggingConfig.File is set, events are also appended to it.
package logger
