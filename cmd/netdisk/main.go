package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/bitrise-io/go-utils/v2/env"
	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/bitrise-io/go-utils/v2/pathutil"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := log.NewLogger()
	a, err := newApp(env.NewRepository(), logger, pathutil.NewPathModifier(), os.Stdout)
	if err != nil {
		logger.Errorf("%s", err)
		os.Exit(1)
	}
	defer a.close()

	if err := a.run(ctx, os.Args[1:]); err != nil {
		logger.Errorf("%s", err)
		a.close()
		os.Exit(1)
	}
}
