package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Observation is the snapshot of the latest report of each kind received
// during one sampling window. Absent slots are nil.
type Observation struct {
	Timestamp time.Time `json:"timestamp"`
	Device    *Report   `json:"device,omitempty"`
	TPV       *Report   `json:"tpv,omitempty"`
	SKY       *Report   `json:"sky,omitempty"`
	PPS       *Report   `json:"pps,omitempty"`
	GST       *Report   `json:"gst,omitempty"`
}

// Merge stores r in the slot for its kind, replacing whatever was there.
func (o *Observation) Merge(r Report) error {
	slot, err := o.slot(r.Kind)
	if err != nil {
		return err
	}
	rep := r
	*slot = &rep
	return nil
}

// Get returns the report held for kind, or nil.
func (o *Observation) Get(kind Kind) *Report {
	slot, err := o.slot(kind)
	if err != nil {
		return nil
	}
	return *slot
}

// Kinds lists the populated slots in slot order.
func (o *Observation) Kinds() []Kind {
	var out []Kind
	for _, k := range AllKinds {
		if o.Get(k) != nil {
			out = append(out, k)
		}
	}
	return out
}

func (o *Observation) slot(kind Kind) (**Report, error) {
	switch kind {
	case KindDevice:
		return &o.Device, nil
	case KindTPV:
		return &o.TPV, nil
	case KindSKY:
		return &o.SKY, nil
	case KindPPS:
		return &o.PPS, nil
	case KindGST:
		return &o.GST, nil
	default:
		return nil, fmt.Errorf("observation has no slot for %s", kind)
	}
}

// validate checks that every populated slot holds a report of its own kind.
func (o *Observation) validate() error {
	for _, k := range AllKinds {
		if r := o.Get(k); r != nil && r.Kind != k {
			return fmt.Errorf("%s slot holds a %s report", k, r.Kind)
		}
	}
	return nil
}

// Log is the ordered history of observations for one recording session.
// Insertion order is append order.
type Log struct {
	entries []Observation
}

// NewLog returns a log holding entries in the given order.
func NewLog(entries ...Observation) *Log {
	return &Log{entries: append([]Observation(nil), entries...)}
}

// Append adds obs at the end. Existing entries are never touched.
func (l *Log) Append(obs Observation) {
	l.entries = append(l.entries, obs)
}

func (l *Log) Len() int { return len(l.entries) }

// Entries returns a copy of the observations in append order.
func (l *Log) Entries() []Observation {
	return append([]Observation(nil), l.entries...)
}

// Last returns the most recent observation.
func (l *Log) Last() (Observation, bool) {
	if len(l.entries) == 0 {
		return Observation{}, false
	}
	return l.entries[len(l.entries)-1], true
}

func (l *Log) MarshalJSON() ([]byte, error) {
	if l.entries == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(l.entries)
}

func (l *Log) UnmarshalJSON(data []byte) error {
	var entries []Observation
	if err := json.Unmarshal(data, &entries); err != nil {
		return err
	}
	if entries == nil {
		return fmt.Errorf("observation log must be a json array")
	}
	for i := range entries {
		if err := entries[i].validate(); err != nil {
			return fmt.Errorf("entry %d: %w", i, err)
		}
	}
	l.entries = entries
	return nil
}
