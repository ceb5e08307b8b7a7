// Package log provides structured logging for journal components.
//
// Components receive a Logger by dependency injection; there is no global
// logger. Construct one with NewLogger and pass it down:
//
//	logger := log.NewLogger(
//		log.WithLevel(log.InfoLevel),
//		log.WithFormatter(&log.TextFormatter{}),
//	)
//	logger.Info("journal opened", log.F("dir", dir), log.F("len", n))
//
// Libraries that log through the standard library (Pebble does) can be
// routed into a Logger with RedirectStdLog.
package log
