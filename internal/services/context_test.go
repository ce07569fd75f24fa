package services_test

import (
	"context"
	"testing"

	"aegis/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithChunkID(ctx, 42)
	ctx = services.WithStage(ctx, "finalize")
	ctx = services.WithModality(ctx, "video")
	ctx = services.WithRequestID(ctx, "req-123")

	if id, ok := services.ChunkIDFromContext(ctx); !ok || id != 42 {
		t.Fatalf("unexpected chunk id: %v %v", id, ok)
	}
	if stage, ok := services.StageFromContext(ctx); !ok || stage != "finalize" {
		t.Fatalf("unexpected stage: %v %v", stage, ok)
	}
	if modality, ok := services.ModalityFromContext(ctx); !ok || modality != "video" {
		t.Fatalf("unexpected modality: %v %v", modality, ok)
	}
	if rid, ok := services.RequestIDFromContext(ctx); !ok || rid != "req-123" {
		t.Fatalf("unexpected request id: %v %v", rid, ok)
	}
}

func TestStageBlankPreservesContext(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithStage(ctx, "")
	if _, ok := services.StageFromContext(ctx); ok {
		t.Fatal("expected no stage value")
	}
	if _, ok := services.ChunkIDFromContext(ctx); ok {
		t.Fatal("expected no chunk id")
	}
}
