package handlers

import (
	"errors"
	"net/http"

	"github.com/upb/signal-admin/backend/services"
	"github.com/upb/signal-admin/backend/utils"
	"go.uber.org/zap"
)

// HandleServiceError maps domain errors to HTTP responses
func HandleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	if err == nil {
		return
	}

	details := services.GetErrorDetails(err)

	var writeErr error
	switch {
	case services.IsAuthRequiredError(err):
		writeErr = utils.WriteUnauthorized(w, "Authentication required")

	case services.IsSessionInvalidError(err):
		// The reason stays in the logs
		logger.Info("session invalid", zap.Any("details", details))
		writeErr = utils.WriteSessionInvalid(w)

	case services.IsForbiddenError(err):
		writeErr = utils.WriteForbidden(w, "Insufficient permissions")

	case services.IsValidationError(err):
		writeErr = utils.WriteBadRequest(w, messageOf(err), details)

	case services.IsRateLimitError(err):
		writeErr = utils.WriteTooManyRequests(w, "Rate limit exceeded", services.GetResetSeconds(err), operationOnly(details))

	case services.IsStorageUnavailableError(err):
		logger.Error("storage unavailable", zap.Error(err))
		writeErr = utils.WriteServiceUnavailable(w, "")

	case services.IsNotFoundError(err):
		writeErr = utils.WriteNotFound(w, messageOf(err))

	case services.IsConflictError(err):
		writeErr = utils.WriteConflict(w, messageOf(err), details)

	case services.IsInternalError(err):
		logger.Error("internal server error", zap.Error(err))
		writeErr = utils.WriteInternalServerError(w, "An internal error occurred")

	default:
		logger.Error("unhandled error type",
			zap.Error(err),
			zap.String("error_type", string(services.GetErrorType(err))))
		writeErr = utils.WriteInternalServerError(w, "An unexpected error occurred")
	}

	if writeErr != nil {
		logger.Error("failed to write error response", zap.Error(writeErr))
	}
}

// messageOf returns the domain message without wrapped causes
func messageOf(err error) string {
	var domainErr *services.DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Message
	}
	return err.Error()
}

func operationOnly(details map[string]interface{}) map[string]interface{} {
	if op, ok := details["operation"]; ok {
		return map[string]interface{}{"operation": op}
	}
	return nil
}
