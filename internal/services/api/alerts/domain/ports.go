package domain

import (
	"context"

	"facewarden/internal/services/pipeline"
)

// Injector pushes externally supplied detections through the same gate,
// archive, and dispatch path the camera loop uses
type Injector interface {
	Inject(ctx context.Context, a pipeline.ManualAlert) (pipeline.Receipt, error)
}
