package appointment

import (
	"context"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/gov-appointments/internal/department"
	"github.com/hackgods/gov-appointments/internal/slot"
)

// memStore is an in-memory store whose WithTx serializes callers and rolls
// back to a snapshot when fn fails.
type memStore struct {
	mu      sync.Mutex
	slots   map[uuid.UUID]slot.TimeSlot
	appts   map[uuid.UUID]Appointment
	history []StatusChange
}

func newMemStore() *memStore {
	return &memStore{
		slots: map[uuid.UUID]slot.TimeSlot{},
		appts: map[uuid.UUID]Appointment{},
	}
}

func (m *memStore) addSlot(dept department.ID, date, start string) slot.TimeSlot {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := slot.TimeSlot{
		ID:           uuid.New(),
		Department:   dept,
		Date:         date,
		StartTime:    start,
		EndTime:      start,
		Availability: slot.Available,
		Capacity:     1,
	}
	m.slots[s.ID] = s
	return s
}

func (m *memStore) slot(id uuid.UUID) slot.TimeSlot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.slots[id]
}

func (m *memStore) liveForSlot(id uuid.UUID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, a := range m.appts {
		if a.TimeSlotID == id && a.Status != StatusCancelled {
			n++
		}
	}
	return n
}

func (m *memStore) WithTx(ctx context.Context, fn func(ctx context.Context, repos TxRepositories) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	slots := maps.Clone(m.slots)
	appts := maps.Clone(m.appts)
	history := append([]StatusChange(nil), m.history...)

	tx := &memTx{m: m}
	if err := fn(ctx, TxRepositories{Slots: memSlots{tx}, Appointments: tx}); err != nil {
		m.slots, m.appts, m.history = slots, appts, history
		return err
	}
	return nil
}

// locked runs f under the store mutex; used by the non-transactional Repository.
func (m *memStore) locked(f func(tx *memTx)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f(&memTx{m: m})
}

// memTx implements both repositories against the store. The caller holds m.mu.
type memTx struct {
	m *memStore
}

func (t *memTx) GetByID(ctx context.Context, dept department.ID, id uuid.UUID) (*Appointment, error) {
	a, ok := t.m.appts[id]
	if !ok || a.Department != dept {
		return nil, ErrAppointmentNotFound
	}
	return &a, nil
}

func (t *memTx) GetForUpdate(ctx context.Context, dept department.ID, id uuid.UUID) (*Appointment, error) {
	return t.GetByID(ctx, dept, id)
}

func (t *memTx) Create(ctx context.Context, a *Appointment) error {
	for _, existing := range t.m.appts {
		if existing.TimeSlotID == a.TimeSlotID && existing.Status != StatusCancelled {
			return slot.ErrSlotUnavailable
		}
	}
	t.m.appts[a.ID] = *a
	return nil
}

func (t *memTx) Update(ctx context.Context, a *Appointment) error {
	if _, ok := t.m.appts[a.ID]; !ok {
		return ErrAppointmentNotFound
	}
	t.m.appts[a.ID] = *a
	return nil
}

func (t *memTx) InsertStatusChange(ctx context.Context, c StatusChange) error {
	t.m.history = append(t.m.history, c)
	return nil
}

func (t *memTx) ListStatusChanges(ctx context.Context, id uuid.UUID) ([]StatusChange, error) {
	var out []StatusChange
	for _, c := range t.m.history {
		if c.AppointmentID == id {
			out = append(out, c)
		}
	}
	return out, nil
}

func (t *memTx) ListByNIC(ctx context.Context, nic string) ([]Appointment, error) {
	return t.filter(func(a Appointment) bool { return a.NIC == nic }), nil
}

func (t *memTx) List(ctx context.Context, f Filter) ([]Appointment, error) {
	return t.filter(func(a Appointment) bool {
		if f.Department != "" && a.Department != f.Department {
			return false
		}
		if f.Status != "" && a.Status != f.Status {
			return false
		}
		if f.From != nil && a.ScheduledAt.Before(*f.From) {
			return false
		}
		if f.To != nil && !a.ScheduledAt.Before(*f.To) {
			return false
		}
		return true
	}), nil
}

func (t *memTx) filter(keep func(Appointment) bool) []Appointment {
	out := []Appointment{}
	for _, a := range t.m.appts {
		if keep(a) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledAt.Before(out[j].ScheduledAt) })
	return out
}

func (t *memTx) CountByDepartment(ctx context.Context) (map[department.ID]int, error) {
	out := map[department.ID]int{}
	for _, a := range t.m.appts {
		out[a.Department]++
	}
	return out, nil
}

func (t *memTx) FindDueReminders(ctx context.Context, from, to time.Time) ([]Appointment, error) {
	return t.filter(func(a Appointment) bool {
		return a.Status == StatusConfirmed && a.ReminderSentAt == nil &&
			!a.ScheduledAt.Before(from) && a.ScheduledAt.Before(to)
	}), nil
}

func (t *memTx) ClaimReminder(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	a, ok := t.m.appts[id]
	if !ok || a.ReminderSentAt != nil {
		return false, nil
	}
	a.ReminderSentAt = &at
	t.m.appts[id] = a
	return true, nil
}

// memSlots exposes the slot half of memTx; GetByID clashes with the
// appointment repository method of the same name.
type memSlots struct {
	*memTx
}

func (s memSlots) GetByID(ctx context.Context, dept department.ID, id uuid.UUID) (*slot.TimeSlot, error) {
	ts, err := s.getSlot(dept, id)
	if err != nil {
		return nil, err
	}
	return &ts, nil
}

func (t *memTx) getSlot(dept department.ID, id uuid.UUID) (slot.TimeSlot, error) {
	s, ok := t.m.slots[id]
	if !ok || s.Department != dept {
		return slot.TimeSlot{}, slot.ErrSlotNotFound
	}
	return s, nil
}

func (t *memTx) ListAvailable(ctx context.Context, dept department.ID, date string) ([]slot.TimeSlot, error) {
	var out []slot.TimeSlot
	for _, s := range t.m.slots {
		if s.Department == dept && s.Date == date && s.Availability == slot.Available {
			out = append(out, s)
		}
	}
	return out, nil
}

func (t *memTx) CreateMany(ctx context.Context, slots []slot.TimeSlot) error {
	for _, s := range slots {
		t.m.slots[s.ID] = s
	}
	return nil
}

func (t *memTx) SetAvailability(ctx context.Context, dept department.ID, id uuid.UUID, from, to slot.Availability) (*slot.TimeSlot, error) {
	s, err := t.getSlot(dept, id)
	if err != nil {
		return nil, err
	}
	if s.Availability != from {
		return nil, slot.ErrSlotUnavailable
	}
	s.Availability = to
	t.m.slots[id] = s
	return &s, nil
}

func (t *memTx) MarkBooked(ctx context.Context, dept department.ID, id uuid.UUID, nic string, at time.Time) (*slot.TimeSlot, error) {
	s, err := t.getSlot(dept, id)
	if err != nil {
		return nil, err
	}
	if s.Availability != slot.Available {
		return nil, slot.ErrSlotUnavailable
	}
	s.Availability = slot.Booked
	s.BookedBy = &nic
	s.BookedAt = &at
	t.m.slots[id] = s
	return &s, nil
}

func (t *memTx) Release(ctx context.Context, dept department.ID, id uuid.UUID) error {
	s, err := t.getSlot(dept, id)
	if err != nil {
		return err
	}
	if s.Availability == slot.Booked {
		s.Availability = slot.Available
		s.BookedBy = nil
		s.BookedAt = nil
		t.m.slots[id] = s
	}
	return nil
}

// memRepo exposes the store as a plain Repository outside a transaction.
type memRepo struct {
	m *memStore
}

func (r memRepo) Create(ctx context.Context, a *Appointment) (err error) {
	r.m.locked(func(tx *memTx) { err = tx.Create(ctx, a) })
	return
}

func (r memRepo) GetByID(ctx context.Context, dept department.ID, id uuid.UUID) (a *Appointment, err error) {
	r.m.locked(func(tx *memTx) { a, err = tx.GetByID(ctx, dept, id) })
	return
}

func (r memRepo) GetForUpdate(ctx context.Context, dept department.ID, id uuid.UUID) (*Appointment, error) {
	return r.GetByID(ctx, dept, id)
}

func (r memRepo) Update(ctx context.Context, a *Appointment) (err error) {
	r.m.locked(func(tx *memTx) { err = tx.Update(ctx, a) })
	return
}

func (r memRepo) InsertStatusChange(ctx context.Context, c StatusChange) (err error) {
	r.m.locked(func(tx *memTx) { err = tx.InsertStatusChange(ctx, c) })
	return
}

func (r memRepo) ListStatusChanges(ctx context.Context, id uuid.UUID) (out []StatusChange, err error) {
	r.m.locked(func(tx *memTx) { out, err = tx.ListStatusChanges(ctx, id) })
	return
}

func (r memRepo) ListByNIC(ctx context.Context, nic string) (out []Appointment, err error) {
	r.m.locked(func(tx *memTx) { out, err = tx.ListByNIC(ctx, nic) })
	return
}

func (r memRepo) List(ctx context.Context, f Filter) (out []Appointment, err error) {
	r.m.locked(func(tx *memTx) { out, err = tx.List(ctx, f) })
	return
}

func (r memRepo) CountByDepartment(ctx context.Context) (out map[department.ID]int, err error) {
	r.m.locked(func(tx *memTx) { out, err = tx.CountByDepartment(ctx) })
	return
}

func (r memRepo) FindDueReminders(ctx context.Context, from, to time.Time) (out []Appointment, err error) {
	r.m.locked(func(tx *memTx) { out, err = tx.FindDueReminders(ctx, from, to) })
	return
}

func (r memRepo) ClaimReminder(ctx context.Context, id uuid.UUID, at time.Time) (ok bool, err error) {
	r.m.locked(func(tx *memTx) { ok, err = tx.ClaimReminder(ctx, id, at) })
	return
}
