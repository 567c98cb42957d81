package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/nordic-dev-net/hydrophonitor-gps/pkg/gpsrecorder"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	callback := func(_ context.Context, rec gpsrecorder.RecordedObservation) error {
		obs := rec.Observation
		if obs.TPV == nil {
			fmt.Printf("%s seq=%d no fix\n", obs.Timestamp.Format(time.RFC3339), rec.Seq)
			return nil
		}
		fmt.Printf("%s seq=%d mode=%d lat=%f lon=%f\n",
			obs.Timestamp.Format(time.RFC3339),
			rec.Seq,
			obs.TPV.Field("mode").Int(),
			obs.TPV.Field("lat").Float(),
			obs.TPV.Field("lon").Float(),
		)
		return nil
	}

	rt, err := gpsrecorder.Conf("../../data/config.yaml",
		gpsrecorder.WithArchive(gpsrecorder.NewCallbackSink("stdout", callback)))
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	if err := rt.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("recorder exited: %v", err)
	}
}
