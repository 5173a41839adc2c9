package services_test

import (
	"context"
	"testing"

	"reelcast/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithProjectID(ctx, "p-1")
	ctx = services.WithStage(ctx, "merge")
	ctx = services.WithSegmentID(ctx, 3)
	ctx = services.WithRequestID(ctx, "req-123")

	if id, ok := services.ProjectIDFromContext(ctx); !ok || id != "p-1" {
		t.Fatalf("unexpected project id: %v %v", id, ok)
	}
	if stage, ok := services.StageFromContext(ctx); !ok || stage != "merge" {
		t.Fatalf("unexpected stage: %v %v", stage, ok)
	}
	if seg, ok := services.SegmentIDFromContext(ctx); !ok || seg != 3 {
		t.Fatalf("unexpected segment id: %v %v", seg, ok)
	}
	if rid, ok := services.RequestIDFromContext(ctx); !ok || rid != "req-123" {
		t.Fatalf("unexpected request id: %v %v", rid, ok)
	}
}

func TestBlankValuesPreserveContext(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithStage(ctx, "")
	ctx = services.WithSegmentID(ctx, 0)
	if _, ok := services.StageFromContext(ctx); ok {
		t.Fatal("expected no stage value")
	}
	if _, ok := services.SegmentIDFromContext(ctx); ok {
		t.Fatal("expected no segment value")
	}
}
