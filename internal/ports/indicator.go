package ports

import (
	"context"

	"cryptoFeatureSet/internal/domain"
)

// IndicatorEngine augments a candle frame with technical indicator columns.
// Every value must depend only on the current and earlier rows.
// Any implementation honoring that contract can replace the default engine.
type IndicatorEngine interface {
	Augment(ctx context.Context, frame *domain.Frame) (*domain.Frame, error)
}
