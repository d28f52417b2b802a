package logger

import (
	"strings"

	"go.uber.org/zap"
)

// Field keys shared across packages.
const (
	FieldProvider = "embedding_provider"
	FieldModel    = "embedding_model"
	FieldJobID    = "job_id"
	FieldCompany  = "company"
)

// Pairs turns alternating keys and values into string fields. Pairs with a
// blank key or value are skipped, as is a trailing key without a value.
func Pairs(kv ...string) []zap.Field {
	fields := make([]zap.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		key, value := strings.TrimSpace(kv[i]), strings.TrimSpace(kv[i+1])
		if key == "" || value == "" {
			continue
		}
		fields = append(fields, zap.String(key, value))
	}
	return fields
}

// WithEmbedder tags log with the embedding provider and model.
// A nil log yields a no-op logger.
func WithEmbedder(log *zap.Logger, provider, model string) *zap.Logger {
	if log == nil {
		return zap.NewNop()
	}

	fields := Pairs(FieldProvider, provider, FieldModel, model)
	if len(fields) == 0 {
		return log
	}
	return log.With(fields...)
}

func JobFields(jobID, company string) []zap.Field {
	return Pairs(FieldJobID, jobID, FieldCompany, company)
}
