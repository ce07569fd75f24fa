package services

import "context"

type contextKey string

const (
	chunkIDKey   contextKey = "chunk_id"
	stageKey     contextKey = "stage"
	modalityKey  contextKey = "modality"
	requestIDKey contextKey = "request_id"
)

// WithChunkID annotates context with the chunk identifier being processed.
func WithChunkID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, chunkIDKey, id)
}

// ChunkIDFromContext extracts the chunk identifier if present.
func ChunkIDFromContext(ctx context.Context) (int64, bool) {
	v := ctx.Value(chunkIDKey)
	if v == nil {
		return 0, false
	}
	switch val := v.(type) {
	case int64:
		return val, true
	case int:
		return int64(val), true
	default:
		return 0, false
	}
}

// WithStage annotates context with the pipeline stage name.
func WithStage(ctx context.Context, stage string) context.Context {
	if stage == "" {
		return ctx
	}
	return context.WithValue(ctx, stageKey, stage)
}

// StageFromContext returns the stage name if present.
func StageFromContext(ctx context.Context) (string, bool) {
	v := ctx.Value(stageKey)
	if str, ok := v.(string); ok && str != "" {
		return str, true
	}
	return "", false
}

// WithModality annotates context with the analysis modality (audio/video).
func WithModality(ctx context.Context, modality string) context.Context {
	if modality == "" {
		return ctx
	}
	return context.WithValue(ctx, modalityKey, modality)
}

// ModalityFromContext returns the modality if present.
func ModalityFromContext(ctx context.Context) (string, bool) {
	v := ctx.Value(modalityKey)
	if str, ok := v.(string); ok && str != "" {
		return str, true
	}
	return "", false
}

// WithRequestID annotates context with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(requestIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
