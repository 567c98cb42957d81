package ports

import (
	"context"

	"github.com/nordic-dev-net/hydrophonitor-gps/internal/domain"
)

// ArchiveSink mirrors persisted observations to secondary storage.
type ArchiveSink interface {
	WriteObservation(ctx context.Context, seq uint64, obs *domain.Observation) error
	Name() string
}
