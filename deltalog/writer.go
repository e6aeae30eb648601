package deltalog

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"cda-delta-clone/cdaerr"
	"cda-delta-clone/store"
)

// Log owns one entity's Delta transaction log: it recovers the current
// tail on Open, appends Batches from the Batch Planner with
// conditional-PUT optimistic concurrency, and rolls checkpoints.
//
// Grounded on original_source/guidewire/delta_log.py's BaseDeltaLog,
// reimplemented against the raw JSON action format (see actions.go)
// since this package writes the log directly rather than delegating to
// a Delta client library.
type Log struct {
	gw              store.Store
	tableName       string
	logPrefix       string
	retryCap        int
	checkpointEvery int

	tail Tail
}

// Open recovers the tail of the Delta log at tableURI (checkpoint plus
// any commits newer than it, or from scratch if the table has never
// been written), per spec §4.D "recover current state".
func Open(ctx context.Context, gw store.Store, tableName, tableURI string, retryCap, checkpointEvery int) (*Log, error) {
	if retryCap < 1 {
		retryCap = 1
	}
	if checkpointEvery < 1 {
		checkpointEvery = 100
	}
	logPrefix := strings.TrimSuffix(tableURI, "/") + "/_delta_log/"

	tail, err := loadTail(ctx, gw, logPrefix)
	if err != nil {
		return nil, err
	}

	return &Log{
		gw:              gw,
		tableName:       tableName,
		logPrefix:       logPrefix,
		retryCap:        retryCap,
		checkpointEvery: checkpointEvery,
		tail:            tail,
	}, nil
}

// Tail returns the writer's current recovered/committed state.
func (l *Log) Tail() Tail { return l.tail }

func loadTail(ctx context.Context, gw store.Store, logPrefix string) (Tail, error) {
	objs, err := gw.List(ctx, logPrefix, false)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return Tail{}, fmt.Errorf("listing delta log: %w", err)
	}
	if len(objs) == 0 {
		return Tail{Version: -1, LiveFiles: map[string]LiveFile{}}, nil
	}

	ckVersion, err := readLastCheckpoint(ctx, gw, logPrefix)
	if err != nil {
		return Tail{}, fmt.Errorf("reading _last_checkpoint: %w", err)
	}

	tail := Tail{Version: -1, LiveFiles: map[string]LiveFile{}}
	if ckVersion >= 0 {
		tail, err = readCheckpoint(ctx, gw, logPrefix, ckVersion)
		if err != nil {
			return Tail{}, fmt.Errorf("reading checkpoint %d: %w", ckVersion, err)
		}
	}

	var commitVersions []int64
	for _, o := range objs {
		if o.IsPrefix || !strings.HasSuffix(o.Key, ".json") {
			continue
		}
		name := o.Key[strings.LastIndex(o.Key, "/")+1:]
		verStr := strings.TrimSuffix(name, ".json")
		v, err := strconv.ParseInt(verStr, 10, 64)
		if err != nil {
			continue
		}
		if v > tail.Version {
			commitVersions = append(commitVersions, v)
		}
	}
	sort.Slice(commitVersions, func(i, j int) bool { return commitVersions[i] < commitVersions[j] })

	for _, v := range commitVersions {
		data, err := gw.Get(ctx, logPrefix+commitFileName(v), nil)
		if err != nil {
			return Tail{}, fmt.Errorf("reading commit %d: %w", v, err)
		}
		if err := applyCommit(&tail, data); err != nil {
			return Tail{}, fmt.Errorf("parsing commit %d: %w", v, err)
		}
		tail.Version = v
	}

	return tail, nil
}

func applyCommit(tail *Tail, data []byte) error {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		var a Action
		if err := json.Unmarshal(line, &a); err != nil {
			return err
		}
		switch {
		case a.MetaData != nil:
			schema, err := schemaFromJSON(a.MetaData.SchemaString)
			if err != nil {
				return fmt.Errorf("parsing metaData.schemaString: %w", err)
			}
			tail.Schema = schema
			tail.SchemaID = a.MetaData.ID
			tail.SchemaTimestampMS = a.MetaData.CreatedTime
		case a.Add != nil:
			tail.LiveFiles[a.Add.Path] = LiveFile{
				Path:             a.Add.Path,
				Size:             a.Add.Size,
				ModificationTime: a.Add.ModificationTime,
				PartitionValues:  a.Add.PartitionValues,
			}
		case a.Remove != nil:
			delete(tail.LiveFiles, a.Remove.Path)
		case a.CommitInfo != nil:
			if v, ok := a.CommitInfo.OperationParameters["watermark"]; ok {
				if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
					tail.WatermarkMS = ms
				}
			}
		}
	}
	return scanner.Err()
}

// Append writes batch as the next commit, retrying on conditional-PUT
// conflicts (another writer raced us to the same version) up to
// retryCap attempts, per spec §4.D and the "Commit conflict" error
// kind's "retry after re-listing/re-reading" policy.
func (l *Log) Append(ctx context.Context, batch Batch) error {
	var lastErr error
	for attempt := 0; attempt < l.retryCap; attempt++ {
		newVersion := l.tail.Version + 1
		body, err := l.buildCommitBody(batch, newVersion)
		if err != nil {
			return cdaerr.Wrap(cdaerr.CheckpointFailed, l.tableName, "building commit body", err)
		}

		err = l.gw.Put(ctx, l.logPrefix+commitFileName(newVersion), body, store.PutOptions{
			IfNoneMatch: true,
			ContentType: "application/json",
		})
		if err == nil {
			l.applyLocally(batch, newVersion)
			return nil
		}
		if !isConflict(err) {
			return cdaerr.Wrap(cdaerr.StoreTransient, l.tableName, "writing commit", err)
		}

		lastErr = err
		refreshed, refreshErr := loadTail(ctx, l.gw, l.logPrefix)
		if refreshErr != nil {
			return cdaerr.Wrap(cdaerr.CommitConflict, l.tableName, "reopening after commit conflict", refreshErr)
		}
		l.tail = refreshed
	}
	return cdaerr.Wrap(cdaerr.CommitConflict, l.tableName, fmt.Sprintf("exhausted %d attempts", l.retryCap), lastErr)
}

func isConflict(err error) bool {
	return errors.Is(err, store.ErrConflict)
}

func (l *Log) buildCommitBody(batch Batch, newVersion int64) ([]byte, error) {
	var actions []Action

	if newVersion == 0 {
		actions = append(actions, Action{Protocol: &ProtocolAction{MinReaderVersion: 1, MinWriterVersion: 2}})
	}
	if batch.SchemaChange {
		actions = append(actions, Action{MetaData: &MetaDataAction{
			ID:               batch.SchemaID,
			SchemaString:     schemaToJSON(batch.Schema),
			PartitionColumns: []string{},
			Configuration:    map[string]string{},
			CreatedTime:      batch.CommitTimestampMS,
		}})
	}
	for _, p := range batch.Removes {
		live := l.tail.LiveFiles[p]
		actions = append(actions, Action{Remove: &RemoveAction{
			Path:                 p,
			DeletionTimestamp:    batch.CommitTimestampMS,
			DataChange:           true,
			ExtendedFileMetadata: true,
			PartitionValues:      live.PartitionValues,
			Size:                 live.Size,
		}})
	}
	for _, f := range batch.Adds {
		actions = append(actions, Action{Add: &AddAction{
			Path:             f.Path,
			PartitionValues:  f.PartitionValues,
			Size:             f.Size,
			ModificationTime: f.ModificationTime,
			DataChange:       true,
		}})
	}

	op := "WRITE"
	if batch.SchemaChange {
		op = "ADD_COLUMNS"
	}
	actions = append(actions, Action{CommitInfo: &CommitInfoAction{
		Timestamp:      batch.CommitTimestampMS,
		Operation:      op,
		IsolationLevel: "Serializable",
		OperationParameters: map[string]string{
			"watermark":        strconv.FormatInt(batch.WatermarkMS, 10),
			"schema_timestamp": strconv.FormatInt(l.schemaTimestampAfter(batch), 10),
		},
		TxnID: uuid.NewString(),
	}})

	var buf bytes.Buffer
	for _, a := range actions {
		line, err := json.Marshal(a)
		if err != nil {
			return nil, err
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

func (l *Log) schemaTimestampAfter(batch Batch) int64 {
	if batch.SchemaChange {
		return batch.CommitTimestampMS
	}
	return l.tail.SchemaTimestampMS
}

// applyLocally mirrors buildCommitBody's effect onto l.tail after a
// successful Put, so the next Append doesn't have to re-read what it
// just wrote.
func (l *Log) applyLocally(batch Batch, newVersion int64) {
	if batch.SchemaChange {
		l.tail.Schema = batch.Schema
		l.tail.SchemaID = batch.SchemaID
		l.tail.SchemaTimestampMS = batch.CommitTimestampMS
	}
	for _, p := range batch.Removes {
		delete(l.tail.LiveFiles, p)
	}
	for _, f := range batch.Adds {
		l.tail.LiveFiles[f.Path] = LiveFile{
			Path:             f.Path,
			Size:             f.Size,
			ModificationTime: f.ModificationTime,
			PartitionValues:  f.PartitionValues,
		}
	}
	l.tail.Version = newVersion
	l.tail.WatermarkMS = batch.WatermarkMS
}

// MaybeCheckpoint rolls a checkpoint if the current version lands on
// the configured interval, per spec §4.D "checkpoint every N commits".
func (l *Log) MaybeCheckpoint(ctx context.Context) error {
	if l.tail.Version <= 0 || l.tail.Version%int64(l.checkpointEvery) != 0 {
		return nil
	}
	if err := writeCheckpoint(ctx, l.gw, l.logPrefix, l.tail); err != nil {
		return cdaerr.Wrap(cdaerr.CheckpointFailed, l.tableName, "writing checkpoint", err)
	}
	return nil
}

// Reset deletes the entity's entire Delta log, for the supplemented
// full-rebuild mode (spec expansion §10, following
// original_source/guidewire/delta_log.py's --reset behavior).
func (l *Log) Reset(ctx context.Context) error {
	if err := l.gw.DeletePrefix(ctx, l.logPrefix); err != nil {
		return cdaerr.Wrap(cdaerr.StoreTransient, l.tableName, "resetting delta log", err)
	}
	l.tail = Tail{Version: -1, LiveFiles: map[string]LiveFile{}}
	return nil
}
