package ports

import (
	"time"

	"github.com/nordic-dev-net/hydrophonitor-gps/internal/domain"
)

type LogStore interface {
	Load() (*domain.Log, error)
	Persist(log *domain.Log) error
	Path() string
	Stats() StoreStats
}

type StoreStats struct {
	Entries     int
	SizeBytes   int64
	LastPersist time.Time
}
