package analytics

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/hackgods/gov-appointments/internal/department"
)

type StatusCount struct {
	Department department.ID
	Status     string
	Count      int
}

type ProcessingSample struct {
	Department department.ID
	Count      int
	AvgSeconds float64
}

type EventCount struct {
	Type       string
	Department string
	Count      int
}

// ReportStore runs the aggregate queries behind the reports.
type ReportStore interface {
	StatusCounts(ctx context.Context) ([]StatusCount, error)
	HourCounts(ctx context.Context) (map[int]int, error)
	ProcessingTimes(ctx context.Context) ([]ProcessingSample, error)
	EventCounts(ctx context.Context) ([]EventCount, error)
}

type DepartmentSummary struct {
	Total           int            `json:"total"`
	StatusBreakdown map[string]int `json:"status_breakdown"`
}

type Summary struct {
	TotalAppointments int                          `json:"total_appointments"`
	Departments       map[string]DepartmentSummary `json:"departments"`
	GeneratedAt       time.Time                    `json:"generated_at"`
}

type NoShowStats struct {
	TotalAppointments int     `json:"total_appointments"`
	NoShows           int     `json:"no_shows"`
	NoShowRate        float64 `json:"no_show_rate"`
	Percentage        string  `json:"percentage"`
}

type ProcessingStats struct {
	AppointmentsProcessed int     `json:"appointments_processed"`
	AvgSeconds            float64 `json:"avg_seconds"`
	AvgHours              float64 `json:"avg_hours"`
	AvgDays               float64 `json:"avg_days"`
	HumanReadable         string  `json:"human_readable"`
}

type UserActivity struct {
	TotalEvents        int            `json:"total_events"`
	EventTypes         map[string]int `json:"event_types"`
	DepartmentActivity map[string]int `json:"department_activity"`
}

type Dashboard struct {
	GeneratedAt     time.Time                  `json:"generated_at"`
	Summary         Summary                    `json:"summary"`
	PeakHours       map[int]int                `json:"peak_hours"`
	DepartmentLoad  map[string]int             `json:"department_load"`
	NoShowRates     map[string]NoShowStats     `json:"no_show_rates"`
	ProcessingTimes map[string]ProcessingStats `json:"processing_times"`
	UserActivity    UserActivity               `json:"user_activity"`
}

type Reports struct {
	store ReportStore
	clock func() time.Time
}

func NewReports(store ReportStore) *Reports {
	return &Reports{store: store, clock: time.Now}
}

func (r *Reports) Summary(ctx context.Context) (Summary, error) {
	counts, err := r.store.StatusCounts(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("status counts: %w", err)
	}
	return buildSummary(counts, r.clock()), nil
}

func buildSummary(counts []StatusCount, now time.Time) Summary {
	s := Summary{Departments: map[string]DepartmentSummary{}, GeneratedAt: now.UTC()}
	for _, id := range department.All {
		s.Departments[string(id)] = DepartmentSummary{StatusBreakdown: map[string]int{}}
	}
	for _, c := range counts {
		d, ok := s.Departments[string(c.Department)]
		if !ok {
			d = DepartmentSummary{StatusBreakdown: map[string]int{}}
		}
		d.Total += c.Count
		d.StatusBreakdown[c.Status] += c.Count
		s.Departments[string(c.Department)] = d
		s.TotalAppointments += c.Count
	}
	return s
}

// PeakHours maps the hour of day (UTC) to the number of appointments scheduled in it.
func (r *Reports) PeakHours(ctx context.Context) (map[int]int, error) {
	hours, err := r.store.HourCounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("hour counts: %w", err)
	}
	return hours, nil
}

func (r *Reports) DepartmentLoad(ctx context.Context) (map[string]int, error) {
	s, err := r.Summary(ctx)
	if err != nil {
		return nil, err
	}
	return departmentLoad(s), nil
}

func departmentLoad(s Summary) map[string]int {
	load := make(map[string]int, len(s.Departments))
	for name, d := range s.Departments {
		load[name] = d.Total
	}
	return load
}

func (r *Reports) NoShowRate(ctx context.Context) (map[string]NoShowStats, error) {
	s, err := r.Summary(ctx)
	if err != nil {
		return nil, err
	}
	return noShowRates(s), nil
}

func noShowRates(s Summary) map[string]NoShowStats {
	rates := make(map[string]NoShowStats, len(s.Departments))
	for name, d := range s.Departments {
		stats := NoShowStats{TotalAppointments: d.Total, NoShows: d.StatusBreakdown["no_show"], Percentage: "0.0%"}
		if d.Total > 0 {
			stats.NoShowRate = float64(stats.NoShows) / float64(d.Total)
			stats.Percentage = fmt.Sprintf("%.1f%%", stats.NoShowRate*100)
		}
		rates[name] = stats
	}
	return rates
}

// AvgProcessingTime reports the mean time from booking to completion.
func (r *Reports) AvgProcessingTime(ctx context.Context) (map[string]ProcessingStats, error) {
	samples, err := r.store.ProcessingTimes(ctx)
	if err != nil {
		return nil, fmt.Errorf("processing times: %w", err)
	}
	return processingStats(samples), nil
}

func processingStats(samples []ProcessingSample) map[string]ProcessingStats {
	out := make(map[string]ProcessingStats, len(department.All))
	for _, id := range department.All {
		out[string(id)] = ProcessingStats{HumanReadable: "No data"}
	}
	for _, s := range samples {
		if s.Count == 0 {
			continue
		}
		hours := s.AvgSeconds / 3600
		days := hours / 24
		human := fmt.Sprintf("%.1f hours", hours)
		if days >= 1 {
			human = fmt.Sprintf("%.1f days", days)
		}
		out[string(s.Department)] = ProcessingStats{
			AppointmentsProcessed: s.Count,
			AvgSeconds:            round2(s.AvgSeconds),
			AvgHours:              round2(hours),
			AvgDays:               round2(days),
			HumanReadable:         human,
		}
	}
	return out
}

func (r *Reports) Dashboard(ctx context.Context) (Dashboard, error) {
	summary, err := r.Summary(ctx)
	if err != nil {
		return Dashboard{}, err
	}
	hours, err := r.PeakHours(ctx)
	if err != nil {
		return Dashboard{}, err
	}
	processing, err := r.AvgProcessingTime(ctx)
	if err != nil {
		return Dashboard{}, err
	}
	events, err := r.store.EventCounts(ctx)
	if err != nil {
		return Dashboard{}, fmt.Errorf("event counts: %w", err)
	}

	return Dashboard{
		GeneratedAt:     summary.GeneratedAt,
		Summary:         summary,
		PeakHours:       hours,
		DepartmentLoad:  departmentLoad(summary),
		NoShowRates:     noShowRates(summary),
		ProcessingTimes: processing,
		UserActivity:    userActivity(events),
	}, nil
}

func userActivity(events []EventCount) UserActivity {
	ua := UserActivity{EventTypes: map[string]int{}, DepartmentActivity: map[string]int{}}
	for _, e := range events {
		dept := e.Department
		if dept == "" {
			dept = "general"
		}
		ua.TotalEvents += e.Count
		ua.EventTypes[e.Type] += e.Count
		ua.DepartmentActivity[dept] += e.Count
	}
	return ua
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
