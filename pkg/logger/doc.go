// Package logger builds the application's slog.Logger: JSON or text output,
// environment presets, static attributes, and context extractors that
// inject request-scoped values (environment, request metadata) into every
// record.
//
//	log := logger.New(
//	    logger.WithEnvironment(environment.Production, "billing"),
//	    logger.WithContextExtractors(environment.LoggerExtractor()),
//	)
//	logger.SetAsDefault(log)
package logger
