package main

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/pflag"

	"github.com/nordic-dev-net/hydrophonitor-gps/internal/adapters/logstore"
	"github.com/nordic-dev-net/hydrophonitor-gps/internal/domain"
)

type fix struct {
	Seq  int
	Mode int64
	Lat  float64
	Lon  float64
	Time string
}

type summary struct {
	Path     string
	Entries  int
	First    time.Time
	Last     time.Time
	Coverage map[domain.Kind]int
	LastFix  *fix
}

func summarize(path string, log *domain.Log) summary {
	s := summary{Path: path, Entries: log.Len(), Coverage: map[domain.Kind]int{}}
	entries := log.Entries()
	for _, e := range entries {
		for _, k := range e.Kinds() {
			s.Coverage[k]++
		}
	}
	if len(entries) == 0 {
		return s
	}
	s.First = entries[0].Timestamp
	s.Last = entries[len(entries)-1].Timestamp

	for i := len(entries) - 1; i >= 0; i-- {
		tpv := entries[i].TPV
		if tpv == nil {
			continue
		}
		s.LastFix = &fix{
			Seq:  i + 1,
			Mode: tpv.Field("mode").Int(),
			Lat:  tpv.Field("lat").Float(),
			Lon:  tpv.Field("lon").Float(),
			Time: tpv.Field("time").String(),
		}
		break
	}
	return s
}

func (s summary) write(w io.Writer) {
	fmt.Fprintf(w, "log:      %s\n", s.Path)
	fmt.Fprintf(w, "entries:  %d\n", s.Entries)
	if s.Entries == 0 {
		return
	}
	fmt.Fprintf(w, "first:    %s\n", s.First.Format(time.RFC3339Nano))
	fmt.Fprintf(w, "last:     %s\n", s.Last.Format(time.RFC3339Nano))
	fmt.Fprintf(w, "span:     %s\n", s.Last.Sub(s.First))
	fmt.Fprintln(w, "coverage:")
	for _, k := range domain.AllKinds {
		fmt.Fprintf(w, "  %-6s %d/%d\n", k.Class(), s.Coverage[k], s.Entries)
	}
	if s.LastFix == nil {
		fmt.Fprintln(w, "last fix: none")
		return
	}
	fmt.Fprintf(w, "last fix: #%d mode=%d lat=%.7f lon=%.7f time=%s\n",
		s.LastFix.Seq, s.LastFix.Mode, s.LastFix.Lat, s.LastFix.Lon, s.LastFix.Time)
}

func inspectCommand(args []string, stdout io.Writer) error {
	fs := pflag.NewFlagSet("inspect", pflag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("expected exactly one log file, got %d arguments", fs.NArg())
	}

	path := fs.Arg(0)
	log, err := logstore.Load(path)
	if err != nil {
		return err
	}
	summarize(path, log).write(stdout)
	return nil
}
