package analytics

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/gov-appointments/internal/department"
	"github.com/hackgods/gov-appointments/internal/observability"
	"github.com/hackgods/gov-appointments/internal/tasks"
)

type fakeEventStore struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func (f *fakeEventStore) InsertEvent(ctx context.Context, ev Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, ev)
	return nil
}

type fullRunner struct{}

func (fullRunner) Submit(string, func(context.Context) error) error { return tasks.ErrQueueFull }

func TestRecorder_RecordsEvent(t *testing.T) {
	store := &fakeEventStore{}
	r := NewRecorder(store, tasks.Inline{}, observability.Discard())

	extra := map[string]any{"reference": "PASSPORT-1"}
	r.Record(context.Background(), BookingCreated, "200012345678", department.Passport, extra)
	extra["reference"] = "mutated"

	require.Len(t, store.events, 1)
	ev := store.events[0]
	assert.Equal(t, BookingCreated, ev.Type)
	assert.Equal(t, "200012345678", ev.NIC)
	assert.Equal(t, department.Passport, ev.Department)
	assert.Equal(t, "PASSPORT-1", ev.Extra["reference"])
}

func TestRecorder_FailuresAreSwallowed(t *testing.T) {
	store := &fakeEventStore{err: errors.New("db down")}
	r := NewRecorder(store, tasks.Inline{}, observability.Discard())
	assert.NotPanics(t, func() {
		r.Record(context.Background(), UserLogin, "nic", "", nil)
	})

	r = NewRecorder(&fakeEventStore{}, fullRunner{}, observability.Discard())
	assert.NotPanics(t, func() {
		r.Record(context.Background(), UserLogin, "nic", "", nil)
	})
}

type fakeReportStore struct {
	counts     []StatusCount
	hours      map[int]int
	processing []ProcessingSample
	events     []EventCount
	err        error
}

func (f fakeReportStore) StatusCounts(context.Context) ([]StatusCount, error) { return f.counts, f.err }
func (f fakeReportStore) HourCounts(context.Context) (map[int]int, error)     { return f.hours, f.err }
func (f fakeReportStore) ProcessingTimes(context.Context) ([]ProcessingSample, error) {
	return f.processing, f.err
}
func (f fakeReportStore) EventCounts(context.Context) ([]EventCount, error) { return f.events, f.err }

func sampleStore() fakeReportStore {
	return fakeReportStore{
		counts: []StatusCount{
			{Department: department.Medical, Status: "confirmed", Count: 6},
			{Department: department.Medical, Status: "no_show", Count: 2},
			{Department: department.Passport, Status: "completed", Count: 3},
		},
		hours: map[int]int{9: 4, 14: 1},
		processing: []ProcessingSample{
			{Department: department.Passport, Count: 3, AvgSeconds: 2 * 86400},
			{Department: department.Medical, Count: 1, AvgSeconds: 5400},
		},
		events: []EventCount{
			{Type: "user_login", Count: 5},
			{Type: "booking_created", Department: "medical", Count: 2},
		},
	}
}

func TestReports_Summary(t *testing.T) {
	r := NewReports(sampleStore())
	s, err := r.Summary(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 11, s.TotalAppointments)
	assert.Equal(t, 8, s.Departments["medical"].Total)
	assert.Equal(t, 2, s.Departments["medical"].StatusBreakdown["no_show"])
	assert.Equal(t, 0, s.Departments["license"].Total)
}

func TestReports_NoShowRate(t *testing.T) {
	rates, err := NewReports(sampleStore()).NoShowRate(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "25.0%", rates["medical"].Percentage)
	assert.InDelta(t, 0.25, rates["medical"].NoShowRate, 1e-9)
	assert.Equal(t, "0.0%", rates["license"].Percentage)
	assert.Equal(t, 0, rates["license"].TotalAppointments)
}

func TestReports_AvgProcessingTime(t *testing.T) {
	stats, err := NewReports(sampleStore()).AvgProcessingTime(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "2.0 days", stats["passport"].HumanReadable)
	assert.Equal(t, 48.0, stats["passport"].AvgHours)
	assert.Equal(t, "1.5 hours", stats["medical"].HumanReadable)
	assert.Equal(t, "No data", stats["license"].HumanReadable)
}

func TestReports_Dashboard(t *testing.T) {
	r := NewReports(sampleStore())
	r.clock = func() time.Time { return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC) }

	d, err := r.Dashboard(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 11, d.Summary.TotalAppointments)
	assert.Equal(t, 4, d.PeakHours[9])
	assert.Equal(t, 3, d.DepartmentLoad["passport"])
	assert.Equal(t, 7, d.UserActivity.TotalEvents)
	assert.Equal(t, 5, d.UserActivity.DepartmentActivity["general"])
	assert.Equal(t, 2, d.UserActivity.EventTypes["booking_created"])
}

func TestReports_StoreError(t *testing.T) {
	r := NewReports(fakeReportStore{err: errors.New("boom")})
	_, err := r.Dashboard(context.Background())
	assert.Error(t, err)
}
