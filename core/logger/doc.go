// Package logger provides structured logging utilities built on Go's standard
// slog package: a small factory with format and level options plus attribute
// helpers for the realtime delivery domain.
//
// Attribute helpers use the empty Attr pattern for nil safety, so calls like
// log.Info("msg", logger.Error(err)) need no explicit nil checks.
//
//	log := logger.New(
//		logger.WithJSONFormatter(),
//		logger.WithLevel(slog.LevelDebug),
//	)
//
//	log.Info("client connected",
//		logger.Component("ws"),
//		logger.UserID(userID),
//		logger.ConnectionID(connID),
//	)
package logger
