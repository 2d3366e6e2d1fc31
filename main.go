package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/xerrors"

	"github.com/clipsift/evidence-go/mode"
	"github.com/clipsift/evidence-go/pipeline"
	"github.com/clipsift/evidence-go/service/config"
	"github.com/clipsift/evidence-go/service/data"
	"github.com/clipsift/evidence-go/service/inference"
	"github.com/clipsift/evidence-go/service/lgr"
	"github.com/clipsift/evidence-go/service/media"
	"github.com/clipsift/evidence-go/service/queue"
	"github.com/clipsift/evidence-go/service/report"
	"github.com/clipsift/evidence-go/service/storage"
	"github.com/clipsift/evidence-go/service/webhook"
)

const (
	// WARNING: this has to be bigger than the mode processor shutdown time
	waitOnShutdown = 8 * time.Second

	defaultConfigFile = "config.toml"
)

var modeProcessors = map[string]mode.Processor{
	"analyze": mode.Analyze,
	"serve":   mode.Serve,
}

func main() {
	rootCtx := context.Background()
	canxCtx, canxFn := context.WithCancel(rootCtx)

	// Hook up a signal handler to cancel the context
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		lgr.Logger.Info(
			"received kill signal",
			slog.Any("signal", sig),
		)
		canxFn()
	}()

	// Load env vars if we are in DEV mode
	if os.Getenv("RUN_TIME_ENV") == "dev" {
		lgr.Logger.Info("loading env vars from .env file")
		err := godotenv.Load()
		if err != nil {
			lgr.Logger.Error("error loading .env file", slog.Any("error", xerrors.New(err.Error())))
			panic("error loading .env file")
		}
	}

	modeType := "analyze"
	args := os.Args[1:]
	if len(args) > 0 {
		modeType = args[0]
		args = args[1:]
	}

	modeProc, ok := modeProcessors[modeType]
	if !ok {
		lgr.Logger.Error("invalid mode", slog.String("mode", modeType))
		panic("invalid mode")
	}

	// Create the services needed for the mode processor
	configFile := os.Getenv("CONFIG_FILE")
	if configFile == "" {
		configFile = defaultConfigFile
	}

	// Config service
	cfgSvc, err := config.NewToml(configFile)
	if err != nil {
		lgr.Logger.Error("error loading configuration", slog.Any("error", xerrors.New(err.Error())))
		panic("error loading configuration")
	}

	// Data service
	dataSvc, err := data.NewSQLite(cfgSvc.GetRunsDBFile())
	if err != nil {
		lgr.Logger.Error("error opening runs db", slog.Any("error", xerrors.New(err.Error())))
		panic("error opening runs db")
	}
	defer dataSvc.Close()

	// Storage service: archive to S3-compatible storage when configured
	var storageSvc storage.IService = storage.NewNoop()
	if cfgSvc.GetArchiveParameters().Endpoint != "" {
		storageSvc, err = storage.NewMinio(cfgSvc)
		if err != nil {
			lgr.Logger.Error("error creating archive client", slog.Any("error", xerrors.New(err.Error())))
			panic("error creating archive client")
		}
	}

	svcs := pipeline.ServicesFactory{
		CfgSvc:       cfgSvc,
		DataSvc:      dataSvc,
		MediaSvc:     media.NewFFmpeg(),
		InferenceSvc: inference.NewSampled(cfgSvc.GetDefaultFrameSkip()),
		StorageSvc:   storageSvc,
		WebhookSvc:   webhook.NewHTTP(cfgSvc),
		ReportSvc:    report.NewFiles(),
		QueueSvc:     queue.NewChannel(canxCtx),
	}

	// Create mode processor result
	modeProcResult := make(chan error)
	defer close(modeProcResult)

	// Start the mode processor
	go func() {
		modeProcResult <- modeProc(canxCtx, svcs, args)
	}()

	// Wait for cancellation or the mode processor to exit
	select {
	case <-canxCtx.Done():
		lgr.Logger.Info(
			"analyzer context cancelled",
		)

	case err := <-modeProcResult:
		if err != nil {
			lgr.Logger.Error(
				"analyzer mode processor exited",
				slog.Any("error", xerrors.New(err.Error())),
			)
		}

		// Cancel the context if not already cancelled
		if canxCtx.Err() == nil {
			canxFn()
		}
		return
	}

	// Wait in a non-blocking way for `waitOnShutdown` for the go routines to
	// exit. This is needed because they may need to report errors as they are
	// exiting.
	lgr.Logger.Info(
		"analyzer is waiting for all go routines to exit",
	)

	timer := time.NewTimer(waitOnShutdown)
	defer timer.Stop()

	for {
		select {
		case <-timer.C:
			// Timer expired, proceed with shutdown
			lgr.Logger.Info(
				"analyzer shutdown waiting period expired. Exiting now",
				slog.Duration("period", waitOnShutdown),
			)
			return

		case err := <-modeProcResult:
			if err != nil {
				lgr.Logger.Error(
					"analyzer mode processor exited",
					slog.Any("error", xerrors.New(err.Error())),
				)
			}
			return
		}
	}
}
