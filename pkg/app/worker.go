package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/wadjakorntonsri/trimrr/pkg/adapters/queue"
	"github.com/wadjakorntonsri/trimrr/pkg/config"
	"github.com/wadjakorntonsri/trimrr/pkg/core/clicks"
)

// RunWorker consumes click jobs from NATS and records them until ctx ends.
func RunWorker(ctx context.Context, cfg *config.Config, logger *slog.Logger) (err error) {
	if cfg.NATSURL == "" {
		return errors.New("clickworker: NATS_URL is required")
	}
	if logger == nil {
		logger = NewLogger(cfg)
	}

	a := &App{cfg: cfg, logger: logger}
	defer func() {
		err = errors.Join(err, a.release())
	}()

	a.repo, err = OpenRepository(ctx, cfg, logger)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, a.repo)

	locator, err := a.geoLocator()
	if err != nil {
		return err
	}

	recorder := clicks.NewRecorder(a.repo, locator,
		clicks.WithGeoTimeout(cfg.GeoTimeout),
		clicks.WithSalt(cfg.ClientIDSalt),
		clicks.WithLogger(logger),
	)

	broker, err := queue.Connect(queue.Config{URL: cfg.NATSURL, Stream: cfg.ClickStream, Subject: cfg.ClickSubject})
	if err != nil {
		return err
	}
	a.closers = append(a.closers, broker)

	consumer := queue.NewConsumer(broker, recorder, cfg.ClickTimeout, logger)
	if err := consumer.Start(queue.DefaultDurable); err != nil {
		return fmt.Errorf("clickworker: %w", err)
	}

	logger.Info("click worker started", slog.String("subject", cfg.ClickSubject))
	<-ctx.Done()
	logger.Info("click worker stopping")

	// In-flight jobs finish before the store behind the recorder is closed
	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), queue.DrainTimeout)
	defer cancel()
	return consumer.Stop(stopCtx)
}
