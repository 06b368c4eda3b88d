package ports

import (
	"context"

	"cryptoFeatureSet/internal/domain"
)

// DatasetRepository persists built datasets and the build audit trail.
type DatasetRepository interface {
	// WriteDataset writes every row of the dataset to the named relation using mode.
	WriteDataset(ctx context.Context, table string, ds *domain.Dataset, mode domain.WriteMode) error
	// AppendBuildRecord appends one record to the metadata relation. It never replaces existing rows.
	AppendBuildRecord(ctx context.Context, table string, rec domain.BuildRecord) error
}
