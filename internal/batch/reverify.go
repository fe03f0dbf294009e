// Package batch re-verifies the stored pharmacy collection against the NPI
// registry.
//
// The collection is walked in NPI order one shard at a time. Records in a
// shard are looked up concurrently and written back individually, so a run
// can stop at any point and a later run can pick up after the last
// completed shard without recounting anything.
package batch

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/rx-intel/internal/config"
	"github.com/sells-group/rx-intel/internal/enrich"
	"github.com/sells-group/rx-intel/internal/model"
	"github.com/sells-group/rx-intel/internal/store"
	"github.com/sells-group/rx-intel/pkg/nppes"
)

// Reverifier runs re-verification passes over a store.
type Reverifier struct {
	store       store.Store
	registry    nppes.Client
	concurrency int
	shardSize   int
	progress    Progress
	now         func() time.Time
}

// Option configures a Reverifier.
type Option func(*Reverifier)

// WithProgress sets the progress display. The default discards progress.
func WithProgress(p Progress) Option {
	return func(r *Reverifier) { r.progress = p }
}

// WithClock overrides the verification timestamp source.
func WithClock(now func() time.Time) Option {
	return func(r *Reverifier) { r.now = now }
}

// NewReverifier creates a Reverifier using the batch settings in cfg.
func NewReverifier(st store.Store, registry nppes.Client, cfg config.BatchConfig, opts ...Option) *Reverifier {
	r := &Reverifier{
		store:       st,
		registry:    registry,
		concurrency: cfg.Concurrency,
		shardSize:   cfg.ShardSize,
		progress:    NoopProgress{},
		now:         time.Now,
	}
	if r.concurrency <= 0 {
		r.concurrency = 8
	}
	if r.shardSize <= 0 {
		r.shardSize = 500
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Options selects where a run starts and how far it goes.
type Options struct {
	// StartAfter skips every NPI up to and including this one.
	StartAfter string
	// Resume continues after the last completed shard of the most recent
	// run when that run did not complete. It overrides StartAfter.
	Resume bool
	// Limit stops the run after this many records. Zero means no limit.
	Limit int
}

// shardResult collects the outcome of one shard.
type shardResult struct {
	rows       []model.ScoredPharmacy
	processed  int64
	verified   int64
	unverified int64
	failed     int64
	complete   bool
}

// Run performs one pass and returns the persisted run record. Per-record
// lookup failures are counted and logged but never stop the run. The
// returned error is non-nil only when the store fails or ctx is canceled;
// the run record is still returned in both cases.
func (r *Reverifier) Run(ctx context.Context, opts Options) (*model.BatchRun, error) {
	log := zap.L().With(zap.String("component", "batch.reverify"))

	cursor := opts.StartAfter
	if opts.Resume {
		prev, err := r.store.LatestBatchRun(ctx)
		if err != nil {
			return nil, eris.Wrap(err, "batch: load previous run")
		}
		if prev != nil && prev.Status != model.BatchComplete {
			cursor = prev.LastNPI
			if cursor == "" {
				cursor = prev.StartAfter
			}
			log.Info("batch: resuming", zap.String("previous_run", prev.ID), zap.String("after", cursor))
		}
	}

	run, err := r.store.CreateBatchRun(ctx, cursor)
	if err != nil {
		return nil, eris.Wrap(err, "batch: create run")
	}
	run.LastNPI = cursor
	log = log.With(zap.String("run_id", run.ID))
	log.Info("batch: run started", zap.String("after", cursor), zap.Int("shard_size", r.shardSize))

	runErr := r.loop(ctx, run, opts.Limit, log)

	switch {
	case runErr == nil:
		run.Status = model.BatchComplete
	case ctx.Err() != nil:
		run.Status = model.BatchCanceled
	default:
		run.Status = model.BatchFailed
	}
	finished := r.now().UTC()
	run.FinishedAt = &finished
	r.progress.Done(runErr == nil)

	if err := r.store.UpdateBatchRun(context.WithoutCancel(ctx), *run); err != nil {
		log.Error("batch: persist final run state", zap.Error(err))
		if runErr == nil {
			runErr = eris.Wrap(err, "batch: finish run")
		}
	}

	log.Info("batch: run finished",
		zap.String("status", string(run.Status)),
		zap.Int64("processed", run.Processed),
		zap.Int64("verified", run.Verified),
		zap.Int64("unverified", run.Unverified),
		zap.Int64("failed", run.Failed),
		zap.String("last_npi", run.LastNPI),
	)
	return run, runErr
}

func (r *Reverifier) loop(ctx context.Context, run *model.BatchRun, limit int, log *zap.Logger) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		size := r.shardSize
		if limit > 0 {
			remaining := limit - int(run.Processed)
			if remaining <= 0 {
				return nil
			}
			size = min(size, remaining)
		}

		page, err := r.store.ListPharmacies(ctx, store.PharmacyFilter{AfterNPI: run.LastNPI, Limit: size})
		if err != nil {
			return eris.Wrapf(err, "batch: list shard after %q", run.LastNPI)
		}
		if len(page) == 0 {
			return nil
		}
		r.progress.Grow(int64(len(page)))

		res := r.shard(ctx, page, log)

		// Completed lookups are written even when the shard was cut short.
		if len(res.rows) > 0 {
			if _, err := r.store.UpsertPharmacies(context.WithoutCancel(ctx), res.rows); err != nil {
				return eris.Wrap(err, "batch: write shard")
			}
		}

		run.Processed += res.processed
		run.Verified += res.verified
		run.Unverified += res.unverified
		run.Failed += res.failed
		if res.complete {
			run.LastNPI = page[len(page)-1].Pharmacy.NPI
		}
		r.progress.Update(run.Processed, run.Verified, run.Unverified, run.Failed)

		if err := r.store.UpdateBatchRun(context.WithoutCancel(ctx), *run); err != nil {
			return eris.Wrap(err, "batch: checkpoint")
		}
		log.Debug("batch: shard done",
			zap.Int("records", len(page)),
			zap.String("last_npi", run.LastNPI),
		)

		if !res.complete {
			return ctx.Err()
		}
	}
}

// shard looks up every record in page. Once ctx is canceled no further
// lookups are started.
func (r *Reverifier) shard(ctx context.Context, page []model.ScoredPharmacy, log *zap.Logger) shardResult {
	var (
		processed, verified, unverified, failed atomic.Int64
		skipped                                 atomic.Bool
	)
	updated := make([]*model.ScoredPharmacy, len(page))

	g := new(errgroup.Group)
	g.SetLimit(r.concurrency)
	for i := range page {
		g.Go(func() error {
			if ctx.Err() != nil {
				skipped.Store(true)
				return nil
			}
			sp := page[i]
			rec, err := r.registry.Lookup(ctx, sp.Pharmacy.NPI)
			if err != nil {
				if ctx.Err() != nil {
					skipped.Store(true)
					return nil
				}
				failed.Add(1)
				processed.Add(1)
				log.Error("batch: registry lookup failed",
					zap.String("npi", sp.Pharmacy.NPI),
					zap.Error(err),
				)
				return nil
			}

			now := r.now()
			sp.Pharmacy = enrich.Verify(sp.Pharmacy, rec, now)
			sp.UpdatedAt = now.UTC()
			updated[i] = &sp

			processed.Add(1)
			switch sp.Pharmacy.Status {
			case model.StatusActive:
				verified.Add(1)
			case model.StatusUnverified:
				unverified.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	res := shardResult{
		processed:  processed.Load(),
		verified:   verified.Load(),
		unverified: unverified.Load(),
		failed:     failed.Load(),
		complete:   !skipped.Load(),
	}
	for _, sp := range updated {
		if sp != nil {
			res.rows = append(res.rows, *sp)
		}
	}
	return res
}
