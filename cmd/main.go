package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"

	"agri-advisor/internal/app"
	"agri-advisor/internal/config"
	"agri-advisor/internal/logger"
)

func main() {
	ctx := context.Background()

	// ---- Configuration (read only here) ----
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}
	if _, err := logger.Init(cfg.LogEnv); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	// ---- Wiring ----
	a, err := app.New(ctx, cfg)
	if err != nil {
		logger.Base().Error("failed to build application", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}

	lambda.Start(a.Handler.Handle)
}
