package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"os"
	"slices"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/hackgods/gov-appointments/internal/auth"
	"github.com/hackgods/gov-appointments/internal/config"
	"github.com/hackgods/gov-appointments/internal/db"
	"github.com/hackgods/gov-appointments/internal/department"
	"github.com/hackgods/gov-appointments/internal/observability"
)

var logger = observability.NewLogger("simulate", "dev")

type SimConfig struct {
	APIBaseURL   string
	Duration     time.Duration
	Workers      int
	BookingRatio float64
	StatusRatio  float64
	ReadRatio    float64
	CitizenLimit int
	SlotLimit    int
	PostgresDSN  string
	JWTSecret    string
}

type citizen struct {
	UserID uuid.UUID
	NIC    string
	Token  string
}

type openSlot struct {
	ID         uuid.UUID
	Department department.ID
	Date       string
}

type booked struct {
	ID         uuid.UUID
	Department department.ID
}

// DataPool is the fixture set loaded from Postgres plus the bookings made
// during the run.
type DataPool struct {
	Citizens   []citizen
	Slots      []openSlot
	StaffToken string

	mu       sync.RWMutex
	bookings []booked
}

func (dp *DataPool) AddBooking(b booked) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.bookings = append(dp.bookings, b)
}

func (dp *DataPool) RandomBooking(rng *rand.Rand) (booked, bool) {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	if len(dp.bookings) == 0 {
		return booked{}, false
	}
	return dp.bookings[rng.IntN(len(dp.bookings))], true
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	mu        sync.Mutex
	latencies []time.Duration
}

func (om *OperationMetrics) Record(latency time.Duration, status int) {
	atomic.AddInt64(&om.Total, 1)
	switch {
	case status >= 200 && status < 300:
		atomic.AddInt64(&om.Success, 1)
	case status == http.StatusConflict:
		atomic.AddInt64(&om.Conflict, 1)
	default:
		atomic.AddInt64(&om.Error, 1)
	}
	om.mu.Lock()
	om.latencies = append(om.latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, p50, p95, maxLatency time.Duration) {
	om.mu.Lock()
	latencies := slices.Clone(om.latencies)
	om.mu.Unlock()

	if len(latencies) == 0 {
		return 0, 0, 0, 0
	}
	slices.Sort(latencies)

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}
	pick := func(pct int) time.Duration {
		return latencies[min(len(latencies)*pct/100, len(latencies)-1)]
	}
	return sum / time.Duration(len(latencies)), pick(50), pick(95), latencies[len(latencies)-1]
}

type Metrics struct {
	Booking    OperationMetrics
	SlotSearch OperationMetrics
	Status     OperationMetrics
	ListOwn    OperationMetrics
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	metrics Metrics
}

func main() {
	cfg := loadConfig()
	if err := validateConfig(cfg); err != nil {
		fail("invalid config", err)
	}
	logger.Info("simulator starting",
		"duration", cfg.Duration,
		"workers", cfg.Workers,
		"booking", cfg.BookingRatio,
		"status", cfg.StatusRatio,
		"read", cfg.ReadRatio,
	)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pgPool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		fail("connect postgres", err)
	}
	defer pgPool.Close()

	dataPool, err := loadDataPool(ctx, pgPool, cfg)
	if err != nil {
		fail("load data pool", err)
	}
	logger.Info("fixtures loaded", "citizens", len(dataPool.Citizens), "slots", len(dataPool.Slots))

	sim := &Simulator{
		config: cfg,
		pool:   dataPool,
		client: &http.Client{Timeout: 10 * time.Second},
	}
	sim.Run()
	sim.PrintReport()

	if err := checkInvariants(context.Background(), pgPool); err != nil {
		fail("invariant violated", err)
	}
	fmt.Println("Invariant check: no slot has more than one live appointment")
}

func fail(msg string, err error) {
	logger.Error(msg, "error", err)
	os.Exit(1)
}

func loadConfig() SimConfig {
	baseCfg, err := config.Load()
	if err != nil {
		fail("failed to load base config", err)
	}

	cfg := SimConfig{
		APIBaseURL:   getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Duration:     getDuration("SIM_DURATION", 30*time.Second),
		Workers:      getInt("SIM_WORKERS", 10),
		BookingRatio: getFloat("SIM_BOOKING_RATIO", 0.5),
		StatusRatio:  getFloat("SIM_STATUS_RATIO", 0.2),
		ReadRatio:    getFloat("SIM_READ_RATIO", 0.3),
		CitizenLimit: getInt("SIM_CITIZEN_LIMIT", 1000),
		// A small slot pool keeps contention high.
		SlotLimit:   getInt("SIM_SLOT_LIMIT", 50),
		PostgresDSN: baseCfg.PostgresDSN,
		JWTSecret:   baseCfg.JWTSecret,
	}

	total := cfg.BookingRatio + cfg.StatusRatio + cfg.ReadRatio
	if total > 0 {
		cfg.BookingRatio /= total
		cfg.StatusRatio /= total
		cfg.ReadRatio /= total
	}
	return cfg
}

func validateConfig(cfg SimConfig) error {
	if cfg.Workers <= 0 {
		return fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("SIM_DURATION must be > 0")
	}
	return nil
}

// loadDataPool reads citizens and open future slots. Tokens are minted
// locally with the server's secret so the run skips the login endpoint.
func loadDataPool(ctx context.Context, pool *pgxpool.Pool, cfg SimConfig) (*DataPool, error) {
	issuer := auth.NewIssuer(cfg.JWTSecret, cfg.Duration+time.Hour)
	dp := &DataPool{}

	rows, err := pool.Query(ctx, `SELECT user_id, nic FROM citizens WHERE is_active LIMIT $1`, cfg.CitizenLimit)
	if err != nil {
		return nil, fmt.Errorf("load citizens: %w", err)
	}
	citizens, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (citizen, error) {
		var c citizen
		err := row.Scan(&c.UserID, &c.NIC)
		return c, err
	})
	if err != nil {
		return nil, fmt.Errorf("load citizens: %w", err)
	}
	for i := range citizens {
		if citizens[i].Token, err = issuer.Issue(citizens[i].UserID, auth.RoleCitizen); err != nil {
			return nil, err
		}
	}
	dp.Citizens = citizens

	rows, err = pool.Query(ctx, `
		SELECT id, department, slot_date
		FROM time_slots
		WHERE availability = 'available' AND slot_date >= to_char(now(), 'YYYY-MM-DD')
		ORDER BY slot_date, start_time
		LIMIT $1
	`, cfg.SlotLimit)
	if err != nil {
		return nil, fmt.Errorf("load slots: %w", err)
	}
	dp.Slots, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (openSlot, error) {
		var s openSlot
		err := row.Scan(&s.ID, &s.Department, &s.Date)
		return s, err
	})
	if err != nil {
		return nil, fmt.Errorf("load slots: %w", err)
	}

	var staffID uuid.UUID
	if err := pool.QueryRow(ctx, `SELECT user_id FROM officers WHERE role = 'staff' LIMIT 1`).Scan(&staffID); err != nil {
		return nil, fmt.Errorf("load staff account (run seed first): %w", err)
	}
	if dp.StaffToken, err = issuer.Issue(staffID, auth.RoleStaff); err != nil {
		return nil, err
	}

	if len(dp.Citizens) == 0 {
		return nil, fmt.Errorf("no citizens loaded")
	}
	if len(dp.Slots) == 0 {
		return nil, fmt.Errorf("no open slots loaded")
	}
	return dp, nil
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	logger.Info("starting simulation", "duration", s.config.Duration, "workers", s.config.Workers)

	var g errgroup.Group
	for i := 0; i < s.config.Workers; i++ {
		g.Go(func() error {
			s.worker(ctx, uint64(i))
			return nil
		})
	}
	_ = g.Wait()
	logger.Info("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID uint64) {
	rng := rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), workerID))

	for ctx.Err() == nil {
		r := rng.Float64()
		switch {
		case r < s.config.BookingRatio:
			s.doBooking(ctx, rng)
		case r < s.config.BookingRatio+s.config.StatusRatio:
			s.doStatus(ctx, rng)
		case rng.IntN(2) == 0:
			s.doSlotSearch(ctx, rng)
		default:
			s.doListOwn(ctx, rng)
		}
	}
}

func (s *Simulator) call(ctx context.Context, method, path, token string, body any) (int, []byte) {
	var reader io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, s.config.APIBaseURL+path, reader)
	if err != nil {
		return 0, nil
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, nil
	}
	defer resp.Body.Close()
	out, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, out
}

func (s *Simulator) doBooking(ctx context.Context, rng *rand.Rand) {
	sl := s.pool.Slots[rng.IntN(len(s.pool.Slots))]
	c := s.pool.Citizens[rng.IntN(len(s.pool.Citizens))]

	start := time.Now()
	status, body := s.call(ctx, http.MethodPost, "/api/appointments/"+string(sl.Department), c.Token,
		map[string]string{"timeSlotId": sl.ID.String()})
	if ctx.Err() != nil {
		return
	}
	s.metrics.Booking.Record(time.Since(start), status)

	if status == http.StatusCreated {
		var resp struct {
			ID uuid.UUID `json:"appointmentId"`
		}
		if json.Unmarshal(body, &resp) == nil && resp.ID != uuid.Nil {
			s.pool.AddBooking(booked{ID: resp.ID, Department: sl.Department})
		}
	}
}

// doStatus moves a random booking through the officer workflow. Cancelling
// frees the slot so it can be contended again.
func (s *Simulator) doStatus(ctx context.Context, rng *rand.Rand) {
	b, ok := s.pool.RandomBooking(rng)
	if !ok {
		return
	}
	next := []string{"in_progress", "completed", "no_show", "cancelled"}[rng.IntN(4)]

	start := time.Now()
	status, _ := s.call(ctx, http.MethodPut,
		fmt.Sprintf("/api/officer/appointments/%s/%s/status", b.Department, b.ID), s.pool.StaffToken,
		map[string]string{"status": next, "notes": "simulated"})
	if ctx.Err() != nil {
		return
	}
	s.metrics.Status.Record(time.Since(start), status)
}

func (s *Simulator) doSlotSearch(ctx context.Context, rng *rand.Rand) {
	sl := s.pool.Slots[rng.IntN(len(s.pool.Slots))]
	c := s.pool.Citizens[rng.IntN(len(s.pool.Citizens))]

	start := time.Now()
	status, _ := s.call(ctx, http.MethodGet,
		fmt.Sprintf("/api/departments/%s/timeslots?date=%s", sl.Department, sl.Date), c.Token, nil)
	if ctx.Err() != nil {
		return
	}
	s.metrics.SlotSearch.Record(time.Since(start), status)
}

func (s *Simulator) doListOwn(ctx context.Context, rng *rand.Rand) {
	c := s.pool.Citizens[rng.IntN(len(s.pool.Citizens))]

	start := time.Now()
	status, _ := s.call(ctx, http.MethodGet, "/api/appointments/user/"+c.NIC, c.Token, nil)
	if ctx.Err() != nil {
		return
	}
	s.metrics.ListOwn.Record(time.Since(start), status)
}

// checkInvariants fails when a slot is referenced by more than one live
// appointment or a booked slot has none.
func checkInvariants(ctx context.Context, pool *pgxpool.Pool) error {
	var doubled int
	err := pool.QueryRow(ctx, `
		SELECT count(*) FROM (
			SELECT time_slot_id FROM appointments
			WHERE status <> 'cancelled'
			GROUP BY time_slot_id
			HAVING count(*) > 1
		) d
	`).Scan(&doubled)
	if err != nil {
		return err
	}
	if doubled > 0 {
		return fmt.Errorf("%d slots double booked", doubled)
	}

	var orphaned int
	err = pool.QueryRow(ctx, `
		SELECT count(*) FROM time_slots t
		WHERE t.availability = 'booked'
		  AND NOT EXISTS (
			SELECT 1 FROM appointments a
			WHERE a.time_slot_id = t.id AND a.status <> 'cancelled'
		  )
	`).Scan(&orphaned)
	if err != nil {
		return err
	}
	if orphaned > 0 {
		return fmt.Errorf("%d booked slots without an appointment", orphaned)
	}
	return nil
}

func (s *Simulator) PrintReport() {
	line := strings.Repeat("=", 80)
	fmt.Println("\n" + line)
	fmt.Println("SIMULATION REPORT")
	fmt.Println(line)
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Printf("Slots contended: %d\n\n", len(s.pool.Slots))

	printOperationReport("Booking", &s.metrics.Booking)
	printOperationReport("Status update", &s.metrics.Status)
	printOperationReport("Slot search", &s.metrics.SlotSearch)
	printOperationReport("List own appointments", &s.metrics.ListOwn)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}
	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	failed := atomic.LoadInt64(&om.Error)
	pct := func(n int64) float64 { return float64(n) / float64(total) * 100 }

	avg, p50, p95, maxLatency := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, pct(success))
	if conflict > 0 {
		fmt.Printf("  Conflicts: %d (%.1f%%)\n", conflict, pct(conflict))
	}
	if failed > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", failed, pct(failed))
	}
	fmt.Printf("  Latency: avg=%s p50=%s p95=%s max=%s\n\n",
		avg.Round(time.Millisecond), p50.Round(time.Millisecond),
		p95.Round(time.Millisecond), maxLatency.Round(time.Millisecond))
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
