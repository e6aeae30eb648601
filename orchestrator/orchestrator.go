// Package orchestrator implements the Pipeline Orchestrator: fan out
// per-entity Batch Planner + Delta Log Writer pipelines across a
// worker pool, collect per-entity Results, and drive the progress UI.
//
// Grounded on original_source/guidewire/processor.py's Processor.run
// (Ray-parallel vs. sequential branch), ported to Go's native
// concurrency primitives per spec §9, with the bounded errgroup shape
// following the pack's golang.org/x/sync usage.
package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"cda-delta-clone/cdaerr"
	"cda-delta-clone/config"
	"cda-delta-clone/deltalog"
	"cda-delta-clone/manifest"
	"cda-delta-clone/planner"
	"cda-delta-clone/progress"
	"cda-delta-clone/store"
)

// Run drives one pipeline per manifest entry and returns the full
// Result list once every entity has finished, per spec §4.E. Entities
// whose manifest entry was itself malformed (manifestWarnings) are
// surfaced as warning-only Results, since they were never planned.
func Run(ctx context.Context, cfg *config.Config, gw store.Gateways, entries []manifest.Entry, manifestWarnings []manifest.Warning, reporter progress.Reporter) []Result {
	if reporter == nil {
		reporter = progress.NopReporter{}
	}

	results := make([]Result, 0, len(entries)+len(manifestWarnings))
	for _, w := range manifestWarnings {
		results = append(results, Result{Table: w.Table, Warnings: []string{w.Message}})
	}

	reporter.Start(len(entries))

	var mu sync.Mutex
	appendResult := func(r Result) {
		mu.Lock()
		results = append(results, r)
		mu.Unlock()
	}

	if !cfg.Parallel {
		for _, entry := range entries {
			appendResult(runEntity(ctx, cfg, gw, entry, reporter))
		}
		return results
	}

	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(cfg.MaxWorkers)
	for _, entry := range entries {
		entry := entry
		group.Go(func() error {
			// A failing entity never aborts its peers: runEntity always
			// returns a Result (possibly carrying Errors) instead of an
			// error, so group.Wait's error is reserved for the group's own
			// setup problems, never entity failures.
			appendResult(runEntity(gctx, cfg, gw, entry, reporter))
			return nil
		})
	}
	_ = group.Wait()

	return results
}

func runEntity(ctx context.Context, cfg *config.Config, gw store.Gateways, entry manifest.Entry, reporter progress.Reporter) Result {
	result := Result{
		Table:           entry.TableName,
		ManifestRecords: entry.TotalProcessedRecords,
		ProcessStartTS:  time.Now().UnixMilli(),
	}

	tableURI := strings.TrimSuffix(cfg.TargetTableURI, "/") + "/" + entry.TableName

	log, err := deltalog.Open(ctx, gw.Target, entry.TableName, tableURI, cfg.RetryCap, cfg.CheckpointEvery)
	if err != nil {
		result.addError(fmt.Sprintf("opening delta log: %v", err))
		result.ProcessFinishTS = time.Now().UnixMilli()
		reporter.Finish(entry.TableName, false)
		return result
	}

	if cfg.Reset {
		if err := log.Reset(ctx); err != nil {
			result.addError(fmt.Sprintf("resetting delta log: %v", err))
			result.ProcessFinishTS = time.Now().UnixMilli()
			reporter.Finish(entry.TableName, false)
			return result
		}
	}

	result.ProcessStartVersion = log.Tail().Version
	result.ProcessStartWatermark = log.Tail().WatermarkMS

	batches, warnings, err := planner.Plan(ctx, gw.Source, entry, log.Tail())
	for _, w := range warnings {
		result.addWarning(w.Message)
	}
	if err != nil {
		result.addError(classifyPlanError(entry.TableName, err))
		result.ProcessFinishVersion = log.Tail().Version
		result.ProcessFinishWatermark = log.Tail().WatermarkMS
		result.ProcessFinishTS = time.Now().UnixMilli()
		reporter.Finish(entry.TableName, false)
		return result
	}

	for _, batch := range batches {
		if err := ctx.Err(); err != nil {
			result.addWarning("cancelled before all batches were committed; log left in a resumable state")
			break
		}
		if err := log.Append(ctx, batch); err != nil {
			result.addError(fmt.Sprintf("appending batch at ts=%d: %v", batch.CommitTimestampMS, err))
			break
		}
		result.Watermarks = append(result.Watermarks, batch.WatermarkMS)
		if batch.SchemaChange {
			result.SchemaTimestamps = append(result.SchemaTimestamps, batch.CommitTimestampMS)
		}
		if err := log.MaybeCheckpoint(ctx); err != nil {
			result.addWarning(err.Error())
		}
		reporter.Advance(entry.TableName, 1)
	}

	result.ProcessFinishVersion = log.Tail().Version
	result.ProcessFinishWatermark = log.Tail().WatermarkMS
	result.ProcessFinishTS = time.Now().UnixMilli()
	reporter.Finish(entry.TableName, result.ok())
	return result
}

func classifyPlanError(table string, err error) string {
	if kind, ok := cdaerr.KindOf(err); ok {
		return fmt.Sprintf("[%s] %s: %v", kind, table, err)
	}
	return fmt.Sprintf("planning: %v", err)
}
