package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/pricepulse/pricepulse-cli/internal/api"
)

// watch polls products and scheduler status until interrupted.
func (a *app) watch(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	interval := fs.Duration("interval", 5*time.Minute, "poll interval")
	if err := fs.Parse(args); err != nil {
		return err
	}

	a.ensureSession(ctx)
	if !a.binding.IsAuthenticated() {
		return fmt.Errorf("not signed in")
	}

	log.Info().Dur("interval", *interval).Msg("watching products")

	// Poll immediately, then on every tick
	if err := a.pollOnce(ctx); err != nil {
		log.Error().Err(err).Msg("poll failed")
	}

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("stopping watch")
			return ctx.Err()
		case <-ticker.C:
			if err := a.pollOnce(ctx); err != nil {
				if api.IsAuthExpired(err) {
					return err
				}
				log.Error().Err(err).Msg("poll failed")
			}
		}
	}
}

// pollOnce fetches products and scheduler status concurrently and prints a
// summary line per product.
func (a *app) pollOnce(ctx context.Context) error {
	callCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	var (
		products []api.Product
		running  bool
	)

	g, gctx := errgroup.WithContext(callCtx)
	g.Go(func() error {
		var err error
		products, err = a.client.GetProducts(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		running, err = a.client.SchedulerStatus(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	scheduler := "stopped"
	if running {
		scheduler = "running"
	}
	fmt.Printf("--- %s | scheduler %s | %d product(s)\n",
		time.Now().Format("15:04:05"), scheduler, len(products))
	for _, p := range products {
		printProduct(p)
	}
	return nil
}
