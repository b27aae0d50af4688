// Command ensemble runs the rule engine against an ensemble document:
// "ensemble run --executor <flux|fake> <path-to-document>".
//
// Exit codes: 0 success (event stream ended or a terminate action
// dispatched), 1 configuration error (document failed to load), 2
// runtime error (workload manager or event-loop failure).
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	elasticityclient "ensemble/internal/elasticity/client"
	"ensemble/internal/controller"
	"ensemble/internal/workloadmanager"
	"ensemble/internal/workloadmanager/fake"
	"ensemble/internal/workloadmanager/flux"
	"ensemble/pkg/apperror"
	"ensemble/pkg/config"
	"ensemble/pkg/logger"
	"ensemble/pkg/metrics"
	"ensemble/pkg/passhash"
)

// No CLI framework ships in this repo's dependency set (no cobra,
// no pflag) — flag is the standard library's own answer to the same
// concern, used here rather than hand-rolling argv parsing.
func main() {
	flagSet := flag.NewFlagSet("ensemble", flag.ExitOnError)
	executorName := flagSet.String("executor", "fake", "workload manager executor: fake or flux")
	fluxEndpoint := flagSet.String("flux-endpoint", "", "flux executor connection endpoint")

	if len(os.Args) < 2 || os.Args[1] != "run" {
		fmt.Fprintln(os.Stderr, "usage: ensemble run --executor <flux|fake> <path-to-document>")
		os.Exit(1)
	}
	if err := flagSet.Parse(os.Args[2:]); err != nil {
		os.Exit(1)
	}
	if flagSet.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: ensemble run --executor <flux|fake> <path-to-document>")
		os.Exit(1)
	}
	documentPath := flagSet.Arg(0)

	cfg, err := config.LoadWithServiceDefaults("ensemble", 50051)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.InitWithConfig(logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		FilePath:   cfg.Log.FilePath,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
		Compress:   cfg.Log.Compress,
	})
	metrics.InitMetrics(cfg.Metrics.Namespace, cfg.App.Name)

	var manager workloadmanager.Manager
	switch *executorName {
	case "fake":
		manager = fake.New(fake.WithAutoRun(true))
	case "flux":
		manager = flux.New(*fluxEndpoint)
	default:
		fmt.Fprintf(os.Stderr, "unknown executor %q: must be fake or flux\n", *executorName)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var elastic *elasticityclient.Client
	if cfg.Elastic.Host != "" {
		bearerToken := ""
		if cfg.Credential.Enabled {
			cred := passhash.NewCredentialManager(&passhash.CredentialConfig{
				SecretKey: cfg.Credential.SecretKey,
				Issuer:    cfg.Credential.Issuer,
				TTL:       cfg.Credential.TTL,
			})
			bearerToken, err = cred.Generate(cfg.App.Name)
			if err != nil {
				logger.Log.Warn("failed to mint elasticity bearer credential", "error", err)
			}
		}
		elastic, err = elasticityclient.Dial(ctx, elasticityclient.Config{
			Address:      cfg.Elastic.Address(),
			Timeout:      cfg.Elastic.Timeout,
			MaxRetries:   cfg.Elastic.MaxRetries,
			RetryBackoff: cfg.Elastic.RetryBackoff,
			BearerToken:  bearerToken,
		})
		if err != nil {
			logger.Log.Warn("elasticity client unavailable, grow/shrink actions will fail", "error", err)
			elastic = nil
		} else {
			defer elastic.Close()
		}
	}

	ctrl, err := controller.New(controller.Options{
		DocumentPath: documentPath,
		Manager:      manager,
		Elastic:      elastic,
		MetricsSink:  metrics.Get(),
	})
	if err != nil {
		if _, ok := err.(*apperror.Error); ok {
			fmt.Fprintf(os.Stderr, "ensemble document error: %v\n", err)
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "failed to assemble controller: %v\n", err)
		os.Exit(1)
	}

	go controller.LogSummaryPeriodically(ctx, ctrl, cfg.Log.MetricsLogInterval)

	if err := ctrl.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Log.Error("ensemble controller exited with error", "error", err)
		os.Exit(2)
	}
}
