package slot

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/gov-appointments/internal/apperr"
	"github.com/hackgods/gov-appointments/internal/department"
)

type Availability string

const (
	Available Availability = "available"
	Booked    Availability = "booked"
	Blocked   Availability = "blocked"
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

var (
	ErrSlotNotFound    = fmt.Errorf("%w: time slot not found", apperr.ErrNotFound)
	ErrSlotUnavailable = fmt.Errorf("%w: time slot not available", apperr.ErrConflict)
)

type TimeSlot struct {
	ID           uuid.UUID     `json:"id"`
	Department   department.ID `json:"department"`
	Date         string        `json:"date"`
	StartTime    string        `json:"startTime"`
	EndTime      string        `json:"endTime"`
	Availability Availability  `json:"availability"`
	Capacity     int           `json:"capacity"`
	BookedBy     *string       `json:"bookedBy,omitempty"`
	BookedAt     *time.Time    `json:"bookedAt,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
}

// StartsAt combines Date and StartTime in loc.
func (s TimeSlot) StartsAt(loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(DateLayout+" "+TimeLayout, s.Date+" "+s.StartTime, loc)
}
