package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/nordic-dev-net/hydrophonitor-gps"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sink, observations, closeObservations := gpsrecorder.NewChannelSink("fanout", 8)
	defer closeObservations()

	go satelliteCounter(observations)

	rt, err := gpsrecorder.Conf("../../data/config.yaml", gpsrecorder.WithArchive(sink))
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	if err := rt.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("recorder exited: %v", err)
	}
}

func satelliteCounter(observations <-chan gpsrecorder.RecordedObservation) {
	for rec := range observations {
		sky := rec.Observation.SKY
		if sky == nil {
			continue
		}
		fmt.Printf("[%d] satellites used=%d seen=%d\n", rec.Seq,
			sky.Field("uSat").Int(), sky.Field("nSat").Int())
	}
}
