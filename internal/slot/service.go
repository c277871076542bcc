package slot

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/gov-appointments/internal/apperr"
	"github.com/hackgods/gov-appointments/internal/department"
)

const maxSlotsPerRequest = 200

type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

// ListAvailable returns the open slots of a department on date, earliest first.
func (s *Service) ListAvailable(ctx context.Context, dept department.ID, date string) ([]TimeSlot, error) {
	if date == "" {
		return nil, apperr.Validation("date parameter required")
	}
	if _, err := time.Parse(DateLayout, date); err != nil {
		return nil, apperr.Validation("date must be YYYY-MM-DD")
	}
	slots, err := s.repo.ListAvailable(ctx, dept, date)
	if err != nil {
		return nil, fmt.Errorf("list available slots: %w", err)
	}
	return slots, nil
}

type GenerateRequest struct {
	Date            string
	StartTime       string
	EndTime         string
	DurationMinutes int
}

// Generate cuts [StartTime, EndTime) into back-to-back available slots.
func (s *Service) Generate(ctx context.Context, dept department.ID, req GenerateRequest) ([]TimeSlot, error) {
	slots, err := BuildSlots(dept, req, s.clock())
	if err != nil {
		return nil, err
	}
	if err := s.repo.CreateMany(ctx, slots); err != nil {
		return nil, fmt.Errorf("create slots: %w", err)
	}
	return slots, nil
}

// BuildSlots validates req and returns the slots it describes without storing them.
func BuildSlots(dept department.ID, req GenerateRequest, now time.Time) ([]TimeSlot, error) {
	if req.Date == "" || req.StartTime == "" || req.EndTime == "" {
		return nil, apperr.Validation("date, start_time, and end_time required")
	}
	if req.DurationMinutes == 0 {
		req.DurationMinutes = 30
	}
	if req.DurationMinutes < 5 {
		return nil, apperr.Validation("slot_duration must be at least 5 minutes")
	}

	start, err := time.Parse(DateLayout+" "+TimeLayout, req.Date+" "+req.StartTime)
	if err != nil {
		return nil, apperr.Validation("invalid date or start_time")
	}
	end, err := time.Parse(DateLayout+" "+TimeLayout, req.Date+" "+req.EndTime)
	if err != nil {
		return nil, apperr.Validation("invalid end_time")
	}
	if !end.After(start) {
		return nil, apperr.Validation("end_time must be after start_time")
	}

	delta := time.Duration(req.DurationMinutes) * time.Minute
	var slots []TimeSlot
	for cur := start; cur.Before(end); cur = cur.Add(delta) {
		if len(slots) == maxSlotsPerRequest {
			return nil, apperr.Validation("too many slots in one request (max %d)", maxSlotsPerRequest)
		}
		slots = append(slots, TimeSlot{
			ID:           uuid.New(),
			Department:   dept,
			Date:         req.Date,
			StartTime:    cur.Format(TimeLayout),
			EndTime:      cur.Add(delta).Format(TimeLayout),
			Availability: Available,
			Capacity:     1,
			CreatedAt:    now.UTC(),
		})
	}
	return slots, nil
}

// SetAvailability blocks or reopens a slot. Booked slots are only released by
// cancelling their appointment.
func (s *Service) SetAvailability(ctx context.Context, dept department.ID, id uuid.UUID, to Availability) (*TimeSlot, error) {
	var from Availability
	switch to {
	case Blocked:
		from = Available
	case Available:
		from = Blocked
	default:
		return nil, apperr.Validation("availability must be available or blocked")
	}
	updated, err := s.repo.SetAvailability(ctx, dept, id, from, to)
	if err != nil {
		return nil, fmt.Errorf("set slot availability: %w", err)
	}
	return updated, nil
}
