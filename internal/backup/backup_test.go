package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/gov-appointments/internal/observability"
)

type memStore struct {
	order     []string
	data      map[string][]json.RawMessage
	chunks    []int
	failAt    int // fail the nth RestoreChunk call (1-based), 0 never
	calls     int
	snapshots int
	reads     []string

	// duringSnapshot runs between reads, simulating concurrent writers.
	duringSnapshot func(m *memStore)
}

func (m *memStore) Collections() []string { return m.order }

// Snapshot hands out a reader over a frozen copy of data; writes made while
// it is open are invisible to it.
func (m *memStore) Snapshot(ctx context.Context, fn func(ctx context.Context, r CollectionReader) error) error {
	m.snapshots++
	frozen := map[string][]json.RawMessage{}
	for k, v := range m.data {
		frozen[k] = slices.Clone(v)
	}
	return fn(ctx, memReader{m: m, frozen: frozen})
}

type memReader struct {
	m      *memStore
	frozen map[string][]json.RawMessage
}

func (r memReader) Dump(ctx context.Context, name string) ([]json.RawMessage, error) {
	r.m.reads = append(r.m.reads, name)
	if r.m.duringSnapshot != nil {
		r.m.duringSnapshot(r.m)
	}
	return r.frozen[name], nil
}

func (m *memStore) RestoreChunk(ctx context.Context, name string, docs []json.RawMessage) error {
	m.calls++
	if m.calls == m.failAt {
		return errors.New("connection reset")
	}
	m.chunks = append(m.chunks, len(docs))
	m.data[name] = append(m.data[name], docs...)
	return nil
}

func docs(n int) []json.RawMessage {
	out := make([]json.RawMessage, n)
	for i := range out {
		out[i] = json.RawMessage(fmt.Sprintf(`{"id":%d}`, i))
	}
	return out
}

func TestTakeAndRead(t *testing.T) {
	src := &memStore{
		order: []string{"citizens", "time_slots", "complaints"},
		data: map[string][]json.RawMessage{
			"citizens":   docs(3),
			"time_slots": docs(2),
		},
	}
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	d, err := Take(context.Background(), src, now)
	require.NoError(t, err)
	assert.Equal(t, 3, d.Metadata.TotalCollections)
	assert.Equal(t, 5, d.Metadata.TotalDocuments)
	assert.Equal(t, DumpVersion, d.Metadata.DumpVersion)
	assert.NotNil(t, d.Collections["complaints"])

	var buf bytes.Buffer
	require.NoError(t, d.Write(&buf))
	assert.Contains(t, buf.String(), `"dump_timestamp": "2025-03-01T10:00:00Z"`)

	back, err := Read(&buf)
	require.NoError(t, err)
	assert.Equal(t, d.Metadata, back.Metadata)
	assert.Len(t, back.Collections["citizens"], 3)
}

func TestTake_ReadsEveryCollectionFromOneSnapshot(t *testing.T) {
	src := &memStore{
		order: []string{"time_slots", "appointments"},
		data: map[string][]json.RawMessage{
			"time_slots":   {json.RawMessage(`{"id":"s1"}`)},
			"appointments": {json.RawMessage(`{"id":"a1","time_slot_id":"s1"}`)},
		},
	}
	// A slot is generated and booked after time_slots has been read.
	src.duringSnapshot = func(m *memStore) {
		if len(m.reads) == 1 {
			m.data["time_slots"] = append(m.data["time_slots"], json.RawMessage(`{"id":"s2"}`))
			m.data["appointments"] = append(m.data["appointments"], json.RawMessage(`{"id":"a2","time_slot_id":"s2"}`))
		}
	}

	d, err := Take(context.Background(), src, time.Now())
	require.NoError(t, err)

	assert.Equal(t, 1, src.snapshots)
	assert.Equal(t, []string{"time_slots", "appointments"}, src.reads)
	assert.Len(t, d.Collections["time_slots"], 1)
	assert.Len(t, d.Collections["appointments"], 1, "rows written after the snapshot opened are excluded")
}

func TestTake_SnapshotErrorAborts(t *testing.T) {
	_, err := Take(context.Background(), failingSnapshot{&memStore{order: []string{"citizens"}}}, time.Now())
	require.Error(t, err)
}

type failingSnapshot struct{ *memStore }

func (failingSnapshot) Snapshot(ctx context.Context, fn func(ctx context.Context, r CollectionReader) error) error {
	return errors.New("could not serialize access")
}

func TestRestore_ChunksInOrder(t *testing.T) {
	d := &Dump{
		Metadata:    Metadata{DumpTimestamp: time.Now().UTC()},
		Collections: map[string][]json.RawMessage{"a": docs(7), "b": docs(2), "legacy": docs(1)},
	}
	dst := &memStore{order: []string{"a", "b"}, data: map[string][]json.RawMessage{}}

	report, err := NewRestorer(dst, 3, "", observability.Discard()).Restore(context.Background(), d)
	require.NoError(t, err)
	assert.Equal(t, []int{3, 3, 1, 2}, dst.chunks)
	assert.Equal(t, map[string]int{"a": 7, "b": 2}, report.Restored)
	assert.Equal(t, []string{"legacy"}, report.Skipped)
	assert.False(t, report.Resumed)
}

func TestRestore_ResumesFromCheckpoint(t *testing.T) {
	cpPath := filepath.Join(t.TempDir(), "restore.checkpoint")
	d := &Dump{
		Metadata:    Metadata{DumpTimestamp: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)},
		Collections: map[string][]json.RawMessage{"a": docs(5), "b": docs(4)},
	}
	dst := &memStore{order: []string{"a", "b"}, data: map[string][]json.RawMessage{}, failAt: 4}

	_, err := NewRestorer(dst, 2, cpPath, observability.Discard()).Restore(context.Background(), d)
	require.Error(t, err)
	assert.Len(t, dst.data["a"], 5)
	assert.Empty(t, dst.data["b"])
	_, err = os.Stat(cpPath)
	require.NoError(t, err, "checkpoint kept after failure")

	dst.failAt = 0
	report, err := NewRestorer(dst, 2, cpPath, observability.Discard()).Restore(context.Background(), d)
	require.NoError(t, err)
	assert.True(t, report.Resumed)
	assert.Equal(t, map[string]int{"b": 4}, report.Restored)
	assert.Len(t, dst.data["a"], 5, "no chunk written twice")
	assert.Len(t, dst.data["b"], 4)

	_, err = os.Stat(cpPath)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestRestore_StaleCheckpointIgnored(t *testing.T) {
	cpPath := filepath.Join(t.TempDir(), "restore.checkpoint")
	require.NoError(t, os.WriteFile(cpPath, []byte(`{"dump_timestamp":"2020-01-01T00:00:00Z","done":{"a":4}}`), 0o600))

	d := &Dump{
		Metadata:    Metadata{DumpTimestamp: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)},
		Collections: map[string][]json.RawMessage{"a": docs(4)},
	}
	dst := &memStore{order: []string{"a"}, data: map[string][]json.RawMessage{}}

	report, err := NewRestorer(dst, 0, cpPath, observability.Discard()).Restore(context.Background(), d)
	require.NoError(t, err)
	assert.False(t, report.Resumed)
	assert.Equal(t, []int{4}, dst.chunks)
}

func TestIdent(t *testing.T) {
	got, err := ident("appointments")
	require.NoError(t, err)
	assert.Equal(t, `"appointments"`, got)

	_, err = ident("pg_user; DROP TABLE x")
	assert.Error(t, err)
}
