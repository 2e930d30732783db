package logger

import (
	"strings"

	"go.uber.org/zap"
)

const (
	// FieldPlatform is the structured log field key for the platform name.
	FieldPlatform = "platform"
	// FieldCandidate is the structured log field key for a job candidate id.
	FieldCandidate = "candidate_id"
	// FieldCompany is the structured log field key for the candidate company.
	FieldCompany = "company"
	// FieldProvider is the structured log field key for the AI provider name.
	FieldProvider = "ai_provider"
	// FieldModel is the structured log field key for the AI model identifier.
	FieldModel = "ai_model"
)

// StringField describes a string-valued structured logging field.
type StringField struct {
	Key   string
	Value string
}

// StringFields converts the provided key/value pairs into zap fields, trimming
// whitespace and omitting entries with empty keys or values.
func StringFields(fields ...StringField) []zap.Field {
	result := make([]zap.Field, 0, len(fields))
	for _, field := range fields {
		key := strings.TrimSpace(field.Key)
		if key == "" {
			continue
		}

		value := strings.TrimSpace(field.Value)
		if value == "" {
			continue
		}

		result = append(result, zap.String(key, value))
	}

	return result
}

// WithFields attaches the provided fields to the logger, defaulting to a
// no-op logger when nil.
func WithFields(logger *zap.Logger, fields ...zap.Field) *zap.Logger {
	logger = OrNop(logger)
	if len(fields) == 0 {
		return logger
	}

	return logger.With(fields...)
}

// CandidateFields returns the fields identifying a candidate on a platform.
func CandidateFields(platform, candidateID, company string) []zap.Field {
	return StringFields(
		StringField{Key: FieldPlatform, Value: platform},
		StringField{Key: FieldCandidate, Value: candidateID},
		StringField{Key: FieldCompany, Value: company},
	)
}

// AIFields returns standard fields that describe the AI provider and model.
func AIFields(provider, model string) []zap.Field {
	return StringFields(
		StringField{Key: FieldProvider, Value: provider},
		StringField{Key: FieldModel, Value: model},
	)
}

// ForPlatform derives a logger scoped to one platform.
func ForPlatform(logger *zap.Logger, platform string) *zap.Logger {
	return WithFields(logger, StringFields(StringField{Key: FieldPlatform, Value: platform})...)
}
