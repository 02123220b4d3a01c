// internal/common/errors/handler.go
package errors

import (
	"context"
	stderrors "errors"
)

// Logger is the subset of logger.Logger the reporter needs.
type Logger interface {
	Error(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
}

// Notifier is the subset of toast.Notifier the reporter needs.
type Notifier interface {
	Error(message string)
}

// Reporter applies the uniform failure policy: log, toast the best available
// message, leave state alone and never retry.
type Reporter struct {
	logger   Logger
	notifier Notifier
}

func NewReporter(logger Logger, notifier Notifier) *Reporter {
	return &Reporter{logger: logger, notifier: notifier}
}

// Report normalises err, logs it and shows a toast. A cancelled context is
// logged at warn level and produces no toast since the caller abandoned the
// operation on purpose.
func (r *Reporter) Report(ctx context.Context, operation string, err error) *StandardError {
	if err == nil {
		return nil
	}

	if stderrors.Is(err, context.Canceled) && ctx != nil && ctx.Err() != nil {
		if r.logger != nil {
			r.logger.Warn("operation cancelled", map[string]interface{}{
				"operation": operation,
			})
		}
		return Normalize(err)
	}

	stdErr := Normalize(err)
	if r.logger != nil {
		r.logger.Error("operation failed", map[string]interface{}{
			"operation": operation,
			"errorCode": string(stdErr.Code),
			"category":  Category(stdErr.Code),
			"message":   stdErr.Message,
			"details":   stdErr.Details,
			"retryable": stdErr.Retryable,
		})
	}
	if r.notifier != nil {
		r.notifier.Error(UserMessage(stdErr))
	}
	return stdErr
}
