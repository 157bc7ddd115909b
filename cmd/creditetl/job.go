package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"creditetl/internal/catalog"
	"creditetl/internal/cleaner"
	"creditetl/internal/config"
	"creditetl/internal/connections"
	"creditetl/internal/job"
	"creditetl/internal/metrics"
	"creditetl/internal/objectstore"
	"creditetl/internal/quality"
	"creditetl/internal/sink"
	"creditetl/internal/source"
	"creditetl/internal/storage"
	"creditetl/internal/table"
)

var (
	loadCatalogFn = func(path string) (catalog.Catalog, error) {
		return catalog.LoadRegistry(path)
	}

	loadConnectionsFn = func(path string) (sink.Resolver, error) {
		return connections.Load(path)
	}

	// openBucketFn resolves source and clean-zone locations. Tests point it
	// at temporary directories.
	openBucketFn objectstore.Opener = objectstore.DefaultOpener

	newRepositoryFn = func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		return storage.New(ctx, cfg)
	}
)

// runJob executes read → clean → quality → write for j. Stages run in order;
// the first failing stage aborts the run, except the quality gate which
// only logs.
func runJob(ctx context.Context, j config.Job, run *job.Run) error {
	log := run.Logger()
	name := run.Name

	stage := func(step string, fn func() error) error {
		start := time.Now()
		err := fn()
		metrics.RecordStep(name, step, err, time.Since(start))
		if err != nil {
			return fmt.Errorf("%s: %w", step, err)
		}
		return nil
	}

	var raw *table.Table
	if err := stage("read", func() error {
		cat, err := loadCatalogFn(j.Source.Catalog)
		if err != nil {
			return err
		}
		r := &source.Reader{
			Catalog:       cat,
			Open:          openBucketFn,
			MinPartitions: j.Runtime.Partitions,
			Parallelism:   j.Runtime.Parallelism,
			Log:           log.With(zap.String("component", "source")),
		}
		raw, err = r.Read(ctx, j.Source.Database, j.Source.Table)
		return err
	}); err != nil {
		return err
	}
	metrics.RecordRows(name, "read", int64(raw.Count()))

	var cleaned *table.Table
	if err := stage("clean", func() error {
		var (
			rep cleaner.Report
			err error
		)
		cleaned, rep, err = cleaner.Cleaner{Logger: log.With(zap.String("component", "cleaner"))}.Clean(ctx, raw)
		if err != nil {
			return err
		}
		metrics.RecordRows(name, "cleaned", int64(rep.Out))
		metrics.RecordRows(name, "dropped", int64(rep.Dropped()))
		return nil
	}); err != nil {
		return err
	}

	_ = stage("quality", func() error {
		runQualityGate(ctx, j.Quality, cleaned, log.With(zap.String("component", "quality")))
		return nil
	})

	return stage("write", func() error {
		res, err := writeSinks(ctx, j.Sink, run.ID, cleaned, log.With(zap.String("component", "sink")))
		metrics.RecordRows(name, "written_relational", res.RelationalRows)
		if len(res.Objects) > 0 {
			metrics.RecordRows(name, "written_object", int64(cleaned.Count()))
		}
		return err
	})
}

// runQualityGate evaluates q against t. Configuration problems fall back to
// the default rule set and no publishing; nothing here fails the job.
func runQualityGate(ctx context.Context, q config.Quality, t *table.Table, log *zap.Logger) quality.Result {
	rules, err := quality.RulesFromConfig(q.Rules)
	if err != nil {
		log.Warn("quality: invalid rules, using default rule set", zap.Error(err))
		rules = quality.DefaultRuleset()
	}
	pubs, err := quality.PublishersFromConfig(q.Publishers, log)
	if err != nil {
		log.Warn("quality: invalid publishers, publishing disabled", zap.Error(err))
		pubs = nil
	}
	defer func() {
		if err := pubs.Close(); err != nil {
			log.Warn("quality: closing publishers", zap.Error(err))
		}
	}()

	return quality.Gate{
		Evaluator: quality.Evaluator{Context: q.Context, Rules: rules, Scope: q.ObservationsScope},
		Publisher: pubs,
		Publish:   q.EnableResultsPublishing && len(pubs) > 0,
		Strategy:  q.Strategy,
		Log:       log,
	}.Run(ctx, t)
}

func writeSinks(ctx context.Context, s config.Sink, runID string, t *table.Table, log *zap.Logger) (sink.Result, error) {
	bucket, prefix, err := objectstore.OpenWith(ctx, s.Object.Path, openBucketFn)
	if err != nil {
		return sink.Result{}, fmt.Errorf("clean zone: %w", err)
	}
	w := sink.Writer{
		Object: sink.ObjectWriter{
			Bucket: bucket,
			Prefix: prefix,
			Header: s.Object.Header,
			RunID:  runID,
			Log:    log,
		},
		Relational: sink.RelationalWriter{
			Connections: &sink.LazyResolver{Load: func() (sink.Resolver, error) {
				return loadConnectionsFn(s.Relational.Connections)
			}},
			Open:        newRepositoryFn,
			Log:         log,
		},
		Target: sink.Target{
			Connection: s.Relational.Connection,
			Database:   s.Relational.Database,
			Table:      s.Relational.Table,
			AutoCreate: s.Relational.AutoCreateTable,
		},
		Log: log,
	}
	return w.Write(ctx, t)
}
