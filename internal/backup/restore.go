package backup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/hackgods/gov-appointments/internal/observability"
)

// checkpoint records how many documents of each collection are committed for
// the dump identified by DumpTimestamp.
type checkpoint struct {
	DumpTimestamp time.Time      `json:"dump_timestamp"`
	Done          map[string]int `json:"done"`
}

type Restorer struct {
	store      CollectionStore
	chunkSize  int
	checkpoint string
	logger     *observability.Logger
}

// NewRestorer writes chunks of at most chunkSize documents. When
// checkpointPath is empty a failed restore starts over.
func NewRestorer(store CollectionStore, chunkSize int, checkpointPath string, logger *observability.Logger) *Restorer {
	if chunkSize <= 0 || chunkSize > MaxChunk {
		chunkSize = MaxChunk
	}
	return &Restorer{store: store, chunkSize: chunkSize, checkpoint: checkpointPath, logger: logger}
}

type Report struct {
	Restored map[string]int `json:"restored"`
	Skipped  []string       `json:"skipped,omitempty"`
	Resumed  bool           `json:"resumed"`
}

// Restore writes collections sequentially, one transaction per chunk. Work
// already recorded in the checkpoint for the same dump is not repeated.
func (r *Restorer) Restore(ctx context.Context, d *Dump) (Report, error) {
	cp, err := r.loadCheckpoint(d.Metadata.DumpTimestamp)
	if err != nil {
		return Report{}, err
	}
	report := Report{Restored: map[string]int{}, Resumed: len(cp.Done) > 0}

	known := r.store.Collections()
	for name := range d.Collections {
		if !slices.Contains(known, name) {
			report.Skipped = append(report.Skipped, name)
			r.logger.Warn("unknown collection skipped", "collection", name)
		}
	}
	slices.Sort(report.Skipped)

	for _, name := range known {
		docs, ok := d.Collections[name]
		if !ok {
			continue
		}
		for start := cp.Done[name]; start < len(docs); start += r.chunkSize {
			end := min(start+r.chunkSize, len(docs))
			if err := r.store.RestoreChunk(ctx, name, docs[start:end]); err != nil {
				return report, fmt.Errorf("restore %s[%d:%d]: %w", name, start, end, err)
			}
			cp.Done[name] = end
			report.Restored[name] += end - start
			if err := r.saveCheckpoint(cp); err != nil {
				return report, err
			}
			r.logger.Debug("chunk restored", "collection", name, "through", end, "total", len(docs))
		}
		r.logger.Info("collection restored", "collection", name, "documents", len(docs))
	}

	if r.checkpoint != "" {
		if err := os.Remove(r.checkpoint); err != nil && !errors.Is(err, os.ErrNotExist) {
			return report, fmt.Errorf("remove checkpoint: %w", err)
		}
	}
	return report, nil
}

func (r *Restorer) loadCheckpoint(ts time.Time) (checkpoint, error) {
	fresh := checkpoint{DumpTimestamp: ts, Done: map[string]int{}}
	if r.checkpoint == "" {
		return fresh, nil
	}
	b, err := os.ReadFile(r.checkpoint)
	if errors.Is(err, os.ErrNotExist) {
		return fresh, nil
	}
	if err != nil {
		return checkpoint{}, fmt.Errorf("read checkpoint: %w", err)
	}

	var cp checkpoint
	if err := json.Unmarshal(b, &cp); err != nil || !cp.DumpTimestamp.Equal(ts) {
		r.logger.Warn("ignoring stale checkpoint", "path", r.checkpoint)
		return fresh, nil
	}
	if cp.Done == nil {
		cp.Done = map[string]int{}
	}
	return cp, nil
}

func (r *Restorer) saveCheckpoint(cp checkpoint) error {
	if r.checkpoint == "" {
		return nil
	}
	b, err := json.Marshal(cp)
	if err != nil {
		return err
	}
	tmp := r.checkpoint + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return fmt.Errorf("write checkpoint: %w", err)
	}
	return os.Rename(tmp, r.checkpoint)
}
