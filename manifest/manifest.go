// Package manifest reads the top-level CDA manifest and yields the
// entities to process, per spec §4.B.
//
// Grounded on original_source/guidewire/manifest.py's Manifest class
// (read-once, filter-by-table_names, per-entry lookup) for the
// operational shape, and spec §4.B for the exact wire format: a JSON
// object mapping table_name to {dataFilesPath,
// lastSuccessfulWriteTimestamp, totalProcessedRecordsCount,
// schemaHistory}, all timestamps string-encoded decimal ms-epoch.
package manifest

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"cda-delta-clone/cdaerr"
	"cda-delta-clone/store"
)

// SchemaHistoryEntry is one (schema_id, first-seen timestamp) pair from
// an entry's schemaHistory map, sorted ascending by timestamp.
type SchemaHistoryEntry struct {
	SchemaID     string
	FirstSeenTS  int64
}

// Entry is one ManifestEntry: a CDA entity to synthesise a Delta log
// for.
type Entry struct {
	TableName             string
	DataFilesPath         string
	LastSuccessWriteTS    int64
	TotalProcessedRecords int64
	SchemaHistory         []SchemaHistoryEntry
}

// rawEntry mirrors the on-wire shape of one manifest value; all
// timestamps arrive as JSON strings.
type rawEntry struct {
	DataFilesPath              string            `json:"dataFilesPath"`
	LastSuccessfulWriteTS      string            `json:"lastSuccessfulWriteTimestamp"`
	TotalProcessedRecordsCount string            `json:"totalProcessedRecordsCount"`
	SchemaHistory              map[string]string `json:"schemaHistory"`
}

// Warning is a non-fatal problem attached to one table's future Result.
type Warning struct {
	Table   string
	Message string
}

// Read fetches and parses the manifest JSON at uri via gw, filters to
// names (all entries if names is nil/empty), and returns entries sorted
// by table_name for determinism, plus any per-entry warnings.
//
// A missing or malformed manifest document is fatal for the run
// (cdaerr.ManifestMalformed); an individual malformed entry demotes to
// a Warning and the entity is skipped, per spec §4.B.
func Read(ctx context.Context, gw store.Store, uri string, names map[string]struct{}) ([]Entry, []Warning, error) {
	data, err := gw.Get(ctx, uri, nil)
	if err != nil {
		return nil, nil, cdaerr.Wrap(cdaerr.ManifestMalformed, "", "reading manifest", err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, nil, cdaerr.Wrap(cdaerr.ManifestMalformed, "", "manifest is not a JSON object", err)
	}

	var entries []Entry
	var warnings []Warning

	tableNames := make([]string, 0, len(raw))
	for name := range raw {
		tableNames = append(tableNames, name)
	}
	sort.Strings(tableNames)

	for _, name := range tableNames {
		if len(names) > 0 {
			if _, ok := names[name]; !ok {
				continue
			}
		}

		entry, err := parseEntry(name, raw[name])
		if err != nil {
			warnings = append(warnings, Warning{Table: name, Message: err.Error()})
			continue
		}
		entries = append(entries, entry)
	}

	return entries, warnings, nil
}

func parseEntry(name string, msg json.RawMessage) (Entry, error) {
	var re rawEntry
	if err := json.Unmarshal(msg, &re); err != nil {
		return Entry{}, fmt.Errorf("malformed manifest entry %q: %w", name, err)
	}

	if re.DataFilesPath == "" {
		return Entry{}, fmt.Errorf("manifest entry %q missing dataFilesPath", name)
	}
	if len(re.SchemaHistory) == 0 {
		return Entry{}, fmt.Errorf("manifest entry %q has empty schemaHistory", name)
	}

	lastWrite, err := strconv.ParseInt(re.LastSuccessfulWriteTS, 10, 64)
	if err != nil {
		return Entry{}, fmt.Errorf("manifest entry %q has invalid lastSuccessfulWriteTimestamp %q: %w", name, re.LastSuccessfulWriteTS, err)
	}

	var records int64
	if re.TotalProcessedRecordsCount != "" {
		records, err = strconv.ParseInt(re.TotalProcessedRecordsCount, 10, 64)
		if err != nil {
			return Entry{}, fmt.Errorf("manifest entry %q has invalid totalProcessedRecordsCount %q: %w", name, re.TotalProcessedRecordsCount, err)
		}
	}

	history := make([]SchemaHistoryEntry, 0, len(re.SchemaHistory))
	for schemaID, tsStr := range re.SchemaHistory {
		ts, err := strconv.ParseInt(tsStr, 10, 64)
		if err != nil {
			return Entry{}, fmt.Errorf("manifest entry %q has invalid schemaHistory timestamp %q for schema %q: %w", name, tsStr, schemaID, err)
		}
		history = append(history, SchemaHistoryEntry{SchemaID: schemaID, FirstSeenTS: ts})
	}
	sort.Slice(history, func(i, j int) bool { return history[i].FirstSeenTS < history[j].FirstSeenTS })

	for i := 1; i < len(history); i++ {
		if history[i].FirstSeenTS <= history[i-1].FirstSeenTS {
			return Entry{}, fmt.Errorf("manifest entry %q has non-ascending schemaHistory (duplicate timestamp %d)", name, history[i].FirstSeenTS)
		}
	}

	return Entry{
		TableName:             name,
		DataFilesPath:         re.DataFilesPath,
		LastSuccessWriteTS:    lastWrite,
		TotalProcessedRecords: records,
		SchemaHistory:         history,
	}, nil
}
