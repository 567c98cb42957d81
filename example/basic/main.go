package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"

	"github.com/nordic-dev-net/hydrophonitor-gps"
)

func main() {
	rt, err := gpsrecorder.Conf("../../data/config.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rt.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("recorder exited: %v", err)
	}
}
