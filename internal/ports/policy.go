package ports

import "time"

type Policy struct {
	Interval time.Duration `yaml:"interval"`
	Window   time.Duration `yaml:"window"`

	// ContinueOnReceiveError keeps the sampling window open after a failed
	// read instead of aborting the recorder.
	ContinueOnReceiveError bool `yaml:"continue_on_receive_error"`
	// ReloadEachCycle re-reads the log file before every append instead of
	// keeping the loaded log in memory.
	ReloadEachCycle bool `yaml:"reload_each_cycle"`
}
