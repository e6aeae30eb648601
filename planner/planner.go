// Package planner implements the Batch Planner: for one entity, walk
// its CDA parquet tree and turn it into an ordered sequence of Delta
// commit batches relative to the entity's current log tail.
//
// Grounded on original_source/guidewire/batch.py (_get_dir_list,
// _get_parquet_list, _schema_finder, _process_schema_history) for the
// exact folder-walking and schema-boundary algorithm, adapted to the
// Store/Tail abstractions the Go rewrite uses in place of Ray remote
// calls and delta-rs.
package planner

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"cda-delta-clone/deltalog"
	"cda-delta-clone/manifest"
	"cda-delta-clone/store"
)

// maxFanOut bounds concurrent listing/HEAD calls within one entity's
// plan, per spec §5's "small bounded fan-out (≤16)".
const maxFanOut = 16

// Warning is a non-fatal planning problem (orphan folder, empty
// folder, duplicate timestamp) attached to the entity's eventual
// Result.
type Warning struct {
	Message string
}

// Plan enumerates entry.DataFilesPath against gw and produces the
// ordered batches needed to bring tail up to date, plus any warnings
// encountered along the way. It never mutates tail; the caller commits
// each batch via deltalog.Log.Append and lets the log's own tail
// tracking advance.
func Plan(ctx context.Context, gw store.Store, entry manifest.Entry, tail deltalog.Tail) ([]deltalog.Batch, []Warning, error) {
	folders, warnings, err := schemaFolders(ctx, gw, entry)
	if err != nil {
		return nil, warnings, err
	}
	if len(folders) == 0 {
		return nil, warnings, nil
	}
	sort.Slice(folders, func(i, j int) bool { return folders[i].FirstSeenTS < folders[j].FirstSeenTS })

	var batches []deltalog.Batch
	watermark := tail.WatermarkMS

	// live tracks the path set the Delta log will hold once every batch
	// built so far has been committed. Since each TimestampFolder fully
	// replaces the entity's snapshot (invariant 1), the remove set for
	// any batch — whether a same-schema continuation or a schema-change
	// boundary — is always exactly this running set, not something that
	// needs separate schema-relative bookkeeping.
	live := make(map[string]struct{}, len(tail.LiveFiles))
	for p := range tail.LiveFiles {
		live[p] = struct{}{}
	}

	for _, folder := range folders {
		tsFolders, folderWarnings, err := timestampFolders(ctx, gw, folder)
		warnings = append(warnings, folderWarnings...)
		if err != nil {
			return nil, warnings, err
		}

		var surviving []timestampFolder
		for _, tf := range tsFolders {
			if tf.TS <= watermark {
				continue
			}
			surviving = append(surviving, tf)
		}
		if len(surviving) == 0 {
			continue
		}

		// A folder is a schema-change boundary only the first time this
		// run sees it committed: i.e. its first_seen_ts postdates the
		// watermark we started planning from.
		schemaChangeBoundary := folder.FirstSeenTS > tail.WatermarkMS

		schema, schemaID, err := discoverSchema(ctx, gw, surviving[0])
		if err != nil {
			return nil, warnings, fmt.Errorf("discovering schema for folder %s: %w", folder.SchemaID, err)
		}

		for i, tf := range surviving {
			removes := make([]string, 0, len(live))
			for p := range live {
				removes = append(removes, p)
			}
			sort.Strings(removes)

			adds := make([]deltalog.FileRef, 0, len(tf.Files))
			for _, f := range tf.Files {
				adds = append(adds, deltalog.FileRef{
					Path:             gw.URIFor(f.Key),
					Size:             f.Size,
					ModificationTime: tf.TS,
					PartitionValues:  map[string]string{},
				})
			}
			sort.Slice(adds, func(a, b int) bool { return adds[a].Path < adds[b].Path })

			batches = append(batches, deltalog.Batch{
				SchemaChange:      schemaChangeBoundary && i == 0,
				Schema:            schema,
				SchemaID:          schemaID,
				Adds:              adds,
				Removes:           removes,
				CommitTimestampMS: tf.TS,
				WatermarkMS:       tf.TS,
			})

			live = make(map[string]struct{}, len(adds))
			for _, a := range adds {
				live[a.Path] = struct{}{}
			}
		}
		watermark = surviving[len(surviving)-1].TS
	}

	return batches, warnings, nil
}

type schemaFolder struct {
	SchemaID    string
	Prefix      string
	FirstSeenTS int64
}

type parquetFile struct {
	Key  string
	Size int64
}

type timestampFolder struct {
	TS     int64
	Prefix string
	Files  []parquetFile
}

// schemaFolders lists entry.DataFilesPath and reconciles the folder
// set against schema_history: history entries without a folder and
// folders without a history entry are both warnings and skipped, per
// spec §4.C step 1.
func schemaFolders(ctx context.Context, gw store.Store, entry manifest.Entry) ([]schemaFolder, []Warning, error) {
	base := strings.TrimSuffix(entry.DataFilesPath, "/") + "/"
	listed, err := gw.List(ctx, base, false)
	if err != nil {
		return nil, nil, fmt.Errorf("listing %s: %w", base, err)
	}

	present := make(map[string]string) // schema_id -> prefix
	for _, o := range listed {
		if !o.IsPrefix {
			continue
		}
		id := path.Base(strings.TrimSuffix(o.Key, "/"))
		present[id] = strings.TrimSuffix(o.Key, "/") + "/"
	}

	history := make(map[string]int64, len(entry.SchemaHistory))
	for _, h := range entry.SchemaHistory {
		history[h.SchemaID] = h.FirstSeenTS
	}

	var warnings []Warning
	var out []schemaFolder
	for id, ts := range history {
		prefix, ok := present[id]
		if !ok {
			warnings = append(warnings, Warning{Message: fmt.Sprintf("schema_history entry %q has no matching folder", id)})
			continue
		}
		out = append(out, schemaFolder{SchemaID: id, Prefix: prefix, FirstSeenTS: ts})
	}
	for id := range present {
		if _, ok := history[id]; !ok {
			warnings = append(warnings, Warning{Message: fmt.Sprintf("orphan schema folder %q has no schema_history entry", id)})
		}
	}

	return out, warnings, nil
}

// timestampFolders lists folder.Prefix, keeps entries whose name
// parses as an integer, sorts ascending, and drops duplicates (spec
// §4.C step 5's "duplicates are a warning and the second is dropped").
func timestampFolders(ctx context.Context, gw store.Store, folder schemaFolder) ([]timestampFolder, []Warning, error) {
	listed, err := gw.List(ctx, folder.Prefix, false)
	if err != nil {
		return nil, nil, fmt.Errorf("listing %s: %w", folder.Prefix, err)
	}

	type candidate struct {
		ts     int64
		prefix string
	}
	var candidates []candidate
	for _, o := range listed {
		if !o.IsPrefix {
			continue
		}
		name := path.Base(strings.TrimSuffix(o.Key, "/"))
		ts, err := strconv.ParseInt(name, 10, 64)
		if err != nil {
			continue
		}
		candidates = append(candidates, candidate{ts: ts, prefix: strings.TrimSuffix(o.Key, "/") + "/"})
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].ts < candidates[j].ts })

	var warnings []Warning
	seen := make(map[int64]struct{}, len(candidates))
	var kept []candidate
	for _, c := range candidates {
		if _, dup := seen[c.ts]; dup {
			warnings = append(warnings, Warning{Message: fmt.Sprintf("duplicate timestamp folder %d under %s, dropped", c.ts, folder.Prefix)})
			continue
		}
		seen[c.ts] = struct{}{}
		kept = append(kept, c)
	}

	out := make([]timestampFolder, 0, len(kept))
	type result struct {
		tf    timestampFolder
		empty bool
	}
	results := make([]result, len(kept))

	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(maxFanOut)
	for i, c := range kept {
		i, c := i, c
		group.Go(func() error {
			files, err := listParquetFiles(gctx, gw, c.prefix)
			if err != nil {
				return err
			}
			results[i] = result{tf: timestampFolder{TS: c.ts, Prefix: c.prefix, Files: files}, empty: len(files) == 0}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, warnings, err
	}

	for _, r := range results {
		if r.empty {
			warnings = append(warnings, Warning{Message: fmt.Sprintf("timestamp folder %s has no parquet files, skipped", r.tf.Prefix)})
			continue
		}
		out = append(out, r.tf)
	}
	return out, warnings, nil
}

func listParquetFiles(ctx context.Context, gw store.Store, prefix string) ([]parquetFile, error) {
	listed, err := gw.List(ctx, prefix, true)
	if err != nil {
		return nil, err
	}
	var out []parquetFile
	for _, o := range listed {
		if o.IsPrefix || !strings.HasSuffix(o.Key, ".parquet") {
			continue
		}
		out = append(out, parquetFile{Key: o.Key, Size: o.Size})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}
