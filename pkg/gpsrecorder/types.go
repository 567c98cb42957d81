package gpsrecorder

import (
	"github.com/nordic-dev-net/hydrophonitor-gps/internal/app/recorder"
	"github.com/nordic-dev-net/hydrophonitor-gps/internal/clock"
	"github.com/nordic-dev-net/hydrophonitor-gps/internal/domain"
	"github.com/nordic-dev-net/hydrophonitor-gps/internal/ports"
)

// Observation is one sampling window's worth of reports.
type Observation = domain.Observation

// Report is a single gpsd message kept verbatim.
type Report = domain.Report

// Kind names the gpsd report classes an Observation has slots for.
type Kind = domain.Kind

// Log is the ordered history stored in a session file.
type Log = domain.Log

// ReportChannel is a session with the positioning daemon.
type ReportChannel = ports.ReportChannel

// Dialer opens a ReportChannel.
type Dialer = recorder.Dialer

// LogStore persists the session log.
type LogStore = ports.LogStore

// StoreStats exposes log file bookkeeping.
type StoreStats = ports.StoreStats

// ArchiveSink receives every observation after it has been persisted.
type ArchiveSink = ports.ArchiveSink

// Observability emits logs and metrics.
type Observability = ports.Observability

// Field is a structured log field.
type Field = ports.Field

// Clock drives the sampling window and pacing.
type Clock = clock.Clock

// State is the recorder lifecycle state.
type State = recorder.State

const (
	KindDevice = domain.KindDevice
	KindTPV    = domain.KindTPV
	KindSKY    = domain.KindSKY
	KindPPS    = domain.KindPPS
	KindGST    = domain.KindGST
)

var (
	ErrConnect   = recorder.ErrConnect
	ErrHandshake = recorder.ErrHandshake
	ErrReceive   = recorder.ErrReceive
	ErrStorage   = recorder.ErrStorage
)
