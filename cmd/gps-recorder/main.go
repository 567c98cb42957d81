package main

import (
	"fmt"
	"log"
	"os"
	"strings"
)

func main() {
	args := os.Args[1:]
	cmd := "run"
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		cmd, args = args[0], args[1:]
	}

	var err error
	switch cmd {
	case "run":
		err = runCommand(args)
	case "validate":
		err = validateCommand(args, os.Stdout)
	case "inspect":
		err = inspectCommand(args, os.Stdout)
	case "help":
		printUsage()
		return
	default:
		printUsage()
		err = fmt.Errorf("unknown command %q", cmd)
	}

	if err != nil {
		log.Fatalf("gps-recorder %s: %v", cmd, err)
	}
}

func printUsage() {
	fmt.Fprint(os.Stderr, `gps-recorder records gpsd reports into a JSON log file.

Every interval it samples the daemon's report stream for one window and
appends the latest DEVICE, TPV, SKY, PPS and GST report to the session log.

Usage:
  gps-recorder [run] [flags]
  gps-recorder validate --config FILE
  gps-recorder inspect FILE

Commands:
  run        Connect to gpsd and record until interrupted (default)
  validate   Load and validate a config file without recording
  inspect    Summarize an existing log file

Examples:
  gps-recorder -o /data/gps
  gps-recorder run -o /data/gps --hostname gps.local -i 5 -w 500
  gps-recorder run --config ./data/config.yaml
  gps-recorder inspect /data/gps/2024-05-01T12-00-00_GPS_data.json
`)
}
