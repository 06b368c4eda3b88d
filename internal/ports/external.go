package ports

import (
	"context"

	"cryptoFeatureSet/internal/domain"
)

// SnapshotSource provides one external table of daily metrics keyed by UTC date.
type SnapshotSource interface {
	// Name identifies the source in logs and column-collision suffixes.
	Name() string
	// FetchSnapshot returns the source's daily table. A nil or empty snapshot contributes nothing.
	FetchSnapshot(ctx context.Context) (*domain.Snapshot, error)
}
