package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/achilleasa/nimbus/log"
	"github.com/urfave/cli"
)

var logger = log.New("nimbus")

func setupLogging(ctx *cli.Context) error {
	if logFile := ctx.GlobalString("log-file"); logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("could not open log file: %w", err)
		}
		log.SetSink(f)
	}

	if levelName := ctx.GlobalString("log-level"); levelName != "" {
		level, err := log.ParseLevel(levelName)
		if err != nil {
			return err
		}
		log.SetLevel(level)
	}

	if ctx.GlobalBool("v") {
		log.SetLevel(log.Info)
	}

	if ctx.GlobalBool("vv") {
		log.SetLevel(log.Debug)
	}
	return nil
}

// Get a context that is cancelled on SIGINT.
func interruptContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}
