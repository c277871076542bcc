package slot

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/gov-appointments/internal/apperr"
	"github.com/hackgods/gov-appointments/internal/department"
)

type fakeRepo struct {
	Repository
	created   []TimeSlot
	listFunc  func(ctx context.Context, dept department.ID, date string) ([]TimeSlot, error)
	setFunc   func(ctx context.Context, dept department.ID, id uuid.UUID, from, to Availability) (*TimeSlot, error)
	createErr error
}

func (f *fakeRepo) CreateMany(ctx context.Context, slots []TimeSlot) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, slots...)
	return nil
}

func (f *fakeRepo) ListAvailable(ctx context.Context, dept department.ID, date string) ([]TimeSlot, error) {
	return f.listFunc(ctx, dept, date)
}

func (f *fakeRepo) SetAvailability(ctx context.Context, dept department.ID, id uuid.UUID, from, to Availability) (*TimeSlot, error) {
	return f.setFunc(ctx, dept, id, from, to)
}

func TestBuildSlots(t *testing.T) {
	now := time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC)
	slots, err := BuildSlots(department.Passport, GenerateRequest{
		Date: "2025-01-15", StartTime: "09:00", EndTime: "10:00", DurationMinutes: 20,
	}, now)
	require.NoError(t, err)
	require.Len(t, slots, 3)

	assert.Equal(t, "09:00", slots[0].StartTime)
	assert.Equal(t, "09:20", slots[0].EndTime)
	assert.Equal(t, "09:40", slots[2].StartTime)
	for _, s := range slots {
		assert.Equal(t, Available, s.Availability)
		assert.Equal(t, department.Passport, s.Department)
		assert.Equal(t, 1, s.Capacity)
	}
}

func TestBuildSlots_DefaultsAndValidation(t *testing.T) {
	now := time.Now()

	slots, err := BuildSlots(department.Medical, GenerateRequest{Date: "2025-01-15", StartTime: "08:00", EndTime: "09:00"}, now)
	require.NoError(t, err)
	assert.Len(t, slots, 2)

	cases := []GenerateRequest{
		{StartTime: "08:00", EndTime: "09:00"},
		{Date: "2025-13-40", StartTime: "08:00", EndTime: "09:00"},
		{Date: "2025-01-15", StartTime: "10:00", EndTime: "09:00"},
		{Date: "2025-01-15", StartTime: "08:00", EndTime: "09:00", DurationMinutes: 1},
		{Date: "2025-01-15", StartTime: "00:00", EndTime: "23:59", DurationMinutes: 5},
	}
	for _, c := range cases {
		_, err := BuildSlots(department.Medical, c, now)
		assert.ErrorIs(t, err, apperr.ErrValidation, "%+v", c)
	}
}

func TestService_Generate_Stores(t *testing.T) {
	repo := &fakeRepo{}
	svc := NewService(repo)

	slots, err := svc.Generate(context.Background(), department.License, GenerateRequest{
		Date: "2025-02-01", StartTime: "08:30", EndTime: "09:30", DurationMinutes: 30,
	})
	require.NoError(t, err)
	assert.Len(t, slots, 2)
	assert.Len(t, repo.created, 2)

	repo.createErr = errors.New("copy failed")
	_, err = svc.Generate(context.Background(), department.License, GenerateRequest{
		Date: "2025-02-01", StartTime: "08:30", EndTime: "09:30",
	})
	assert.Error(t, err)
}

func TestService_ListAvailable_ValidatesDate(t *testing.T) {
	repo := &fakeRepo{listFunc: func(ctx context.Context, dept department.ID, date string) ([]TimeSlot, error) {
		return []TimeSlot{{ID: uuid.New(), Date: date}}, nil
	}}
	svc := NewService(repo)

	_, err := svc.ListAvailable(context.Background(), department.Medical, "")
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = svc.ListAvailable(context.Background(), department.Medical, "15/01/2025")
	assert.ErrorIs(t, err, apperr.ErrValidation)

	got, err := svc.ListAvailable(context.Background(), department.Medical, "2025-01-15")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestService_SetAvailability(t *testing.T) {
	var gotFrom Availability
	repo := &fakeRepo{setFunc: func(ctx context.Context, dept department.ID, id uuid.UUID, from, to Availability) (*TimeSlot, error) {
		gotFrom = from
		return &TimeSlot{ID: id, Availability: to}, nil
	}}
	svc := NewService(repo)

	s, err := svc.SetAvailability(context.Background(), department.Medical, uuid.New(), Blocked)
	require.NoError(t, err)
	assert.Equal(t, Available, gotFrom)
	assert.Equal(t, Blocked, s.Availability)

	_, err = svc.SetAvailability(context.Background(), department.Medical, uuid.New(), Booked)
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestTimeSlot_StartsAt(t *testing.T) {
	s := TimeSlot{Date: "2025-03-04", StartTime: "14:30"}
	at, err := s.StartsAt(time.UTC)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 4, 14, 30, 0, 0, time.UTC), at)
}
