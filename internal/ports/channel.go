package ports

import (
	"context"
	"errors"

	"github.com/nordic-dev-net/hydrophonitor-gps/internal/domain"
)

// ErrChannelClosed is returned by Receive once the session with the daemon
// has ended. No further reports will arrive.
var ErrChannelClosed = errors.New("report channel closed")

// ReportChannel is a session with the positioning daemon.
type ReportChannel interface {
	Handshake(ctx context.Context) error
	Receive(ctx context.Context) (domain.Report, error)
	Close() error
}
