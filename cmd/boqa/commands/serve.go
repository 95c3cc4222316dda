// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/openboqa/boqa/services/boqa/config"
	"github.com/openboqa/boqa/services/boqa/httpapi"
	"github.com/openboqa/boqa/services/boqa/obsv"
)

var (
	servePort              int
	serveRateLimit         float64
	serveRateBurst         int
	serveTraceOutputStdout bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the BOQA HTTP API server",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 8080, "port to listen on")
	serveCmd.Flags().Float64Var(&serveRateLimit, "rate-limit", 20, "requests per second allowed per client IP across the /v1 API")
	serveCmd.Flags().IntVar(&serveRateBurst, "rate-burst", 40, "token bucket burst size")
	serveCmd.Flags().BoolVar(&serveTraceOutputStdout, "trace-stdout", false, "emit OpenTelemetry spans to stdout")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	logger := newLogger()

	if serveTraceOutputStdout {
		shutdown, err := obsv.InitTracing(ctx, os.Stdout)
		if err != nil {
			return fmt.Errorf("initializing tracing: %w", err)
		}
		defer shutdown(ctx)
	}

	eng, err := buildEngine(ctx, logger)
	if err != nil {
		return err
	}
	defer eng.Close()

	if configPath != "" {
		watcher, err := config.WatchFile(configPath, logger)
		if err != nil {
			return fmt.Errorf("starting config watcher: %w", err)
		}
		defer watcher.Close()
		watcher.OnReload(func(cfg config.Config) {
			eng.SetWorkers(cfg.Workers)
			eng.SetMaxCachedQuerySize(cfg.MaxCachedQuerySize)
			logger.Info("applied hot-reloaded config",
				"workers", cfg.Workers, "max_cached_query_size", cfg.MaxCachedQuerySize)
		})
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/v1")
	v1.Use(httpapi.RateLimitMiddleware(serveRateLimit, serveRateBurst))

	handlers := httpapi.NewHandlers(eng, logger)
	httpapi.RegisterRoutes(v1, handlers)

	srv := make(chan error, 1)
	go func() {
		logger.Info("boqa serve listening", "port", servePort)
		srv <- router.Run(fmt.Sprintf(":%d", servePort))
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-srv:
		return err
	case <-stop:
		logger.Info("boqa serve shutting down")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
