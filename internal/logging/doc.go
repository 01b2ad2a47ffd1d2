// Package logging provides structured logging for projectd.
//
// Logger wraps zap with context-aware methods that append correlation
// fields taken from the context: OpenTelemetry trace and span IDs, the
// HTTP request ID, and the caller ID of the user acting on a project.
//
//	cfg := logging.NewDefaultConfig()
//	logger, err := logging.NewLogger(cfg, nil)
//	if err != nil {
//	    return err
//	}
//	defer logger.Sync()
//
//	ctx = logging.WithRequestID(ctx, requestID)
//	logger.Info(ctx, "project created", zap.String("project_id", id))
//
// Library packages take a plain *zap.Logger; pass Logger.Underlying().
//
// Sensitive fields (contact_email, email, token, password, authorization by
// default) are replaced with [REDACTED:<len>] by the stdout encoder, and
// values matching the configured patterns with [REDACTED:pattern].
//
// Sampling applies per level below error. Error and above are never sampled.
package logging
