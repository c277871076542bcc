// Package backup dumps every table to a single JSON document and restores it
// in bounded, resumable chunks.
package backup

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"
)

const (
	DumpVersion = "1.0"

	// MaxChunk bounds how many documents one restore transaction writes.
	MaxChunk = 500
)

// CollectionStore reads and writes whole collections as JSON documents.
type CollectionStore interface {
	// Collections lists collection names in restore order.
	Collections() []string
	// Snapshot runs fn with a reader whose reads all see the same committed
	// state, so references between collections stay intact in a dump.
	Snapshot(ctx context.Context, fn func(ctx context.Context, r CollectionReader) error) error
	// RestoreChunk writes docs atomically.
	RestoreChunk(ctx context.Context, name string, docs []json.RawMessage) error
}

type CollectionReader interface {
	Dump(ctx context.Context, name string) ([]json.RawMessage, error)
}

type Metadata struct {
	DumpTimestamp    time.Time `json:"dump_timestamp"`
	DumpVersion      string    `json:"dump_version"`
	TotalCollections int       `json:"total_collections"`
	TotalDocuments   int       `json:"total_documents"`
}

type Dump struct {
	Metadata    Metadata                     `json:"metadata"`
	Collections map[string][]json.RawMessage `json:"collections"`
}

// Take reads every collection from one snapshot, in restore order.
func Take(ctx context.Context, store CollectionStore, now time.Time) (*Dump, error) {
	d := &Dump{
		Metadata:    Metadata{DumpTimestamp: now.UTC(), DumpVersion: DumpVersion},
		Collections: map[string][]json.RawMessage{},
	}

	err := store.Snapshot(ctx, func(ctx context.Context, r CollectionReader) error {
		for _, name := range store.Collections() {
			docs, err := r.Dump(ctx, name)
			if err != nil {
				return fmt.Errorf("dump %s: %w", name, err)
			}
			if docs == nil {
				docs = []json.RawMessage{}
			}
			d.Collections[name] = docs
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	d.Metadata.TotalCollections = len(d.Collections)
	for _, docs := range d.Collections {
		d.Metadata.TotalDocuments += len(docs)
	}
	return d, nil
}

func (d *Dump) Write(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(d)
}

func Read(r io.Reader) (*Dump, error) {
	var d Dump
	if err := json.NewDecoder(r).Decode(&d); err != nil {
		return nil, fmt.Errorf("decode dump: %w", err)
	}
	if d.Collections == nil {
		return nil, fmt.Errorf("decode dump: no collections")
	}
	return &d, nil
}
