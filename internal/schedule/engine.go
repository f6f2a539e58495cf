package schedule

import (
	"context"
	"slices"
	"time"

	"go.uber.org/zap"

	"laundry-booking-backend/internal/model"
	"laundry-booking-backend/internal/store"
)

// Store is what the engine reads.
type Store interface {
	ListResources(ctx context.Context, filter store.ResourceFilter) ([]model.Machine, error)
	ListReservations(ctx context.Context, filter store.ReservationFilter) ([]model.Reservation, error)
	ReservationStarts(ctx context.Context, from, to time.Time, category model.Category) ([]time.Time, error)
}

// Engine computes availability from the registry and the reservation store.
type Engine struct {
	store  Store
	policy Policy
	now    func() time.Time
	log    *zap.Logger
}

// NewEngine creates an availability engine.
func NewEngine(s Store, policy Policy, log *zap.Logger) *Engine {
	return &Engine{store: s, policy: policy, now: time.Now, log: log}
}

// WithClock replaces the engine's clock. Intended for tests.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// Policy returns the booking policy in effect.
func (e *Engine) Policy() Policy {
	return e.policy
}

// Now returns the engine clock's current time.
func (e *Engine) Now() time.Time {
	return e.now()
}

// DailyWorkload counts live reservations per day of month, optionally limited
// to one category.
func (e *Engine) DailyWorkload(ctx context.Context, year int, month time.Month, category model.Category) (map[int]int, error) {
	from := time.Date(year, month, 1, 0, 0, 0, 0, e.policy.Location)
	to := from.AddDate(0, 1, 0)

	starts, err := e.store.ReservationStarts(ctx, from, to, category)
	if err != nil {
		return nil, err
	}

	workload := make(map[int]int)
	for _, s := range starts {
		workload[s.In(e.policy.Location).Day()]++
	}
	return workload, nil
}

// DailyCapacity is in-service machines times slots per machine. Zero means the
// category cannot be booked at all.
func (e *Engine) DailyCapacity(ctx context.Context, category model.Category) (int, error) {
	machines, err := e.inService(ctx, category)
	if err != nil {
		return 0, err
	}
	capacity := 0
	for _, m := range machines {
		capacity += e.policy.SlotsPerResource(m.Category)
	}
	return capacity, nil
}

// FreeSlots lists the slot starts of day in which at least one in-service
// machine of the category is free. Past slots and slots closed by the policy
// are left out. It fails with ErrCapacityUnavailable when no machine of the
// category is in service. Without a category the slot grids of every machine
// category are merged and each machine is checked with its own slot length.
func (e *Engine) FreeSlots(ctx context.Context, day time.Time, category model.Category) ([]time.Time, error) {
	machines, err := e.inService(ctx, category)
	if err != nil {
		return nil, err
	}
	if len(machines) == 0 {
		return nil, model.ErrCapacityUnavailable
	}

	opens, closes := e.policy.Window(day)
	busy, err := e.busyByMachine(ctx, machines, opens, closes)
	if err != nil {
		return nil, err
	}

	now := e.now()
	free := make([]time.Time, 0)
	for _, start := range e.slotStarts(day, machines) {
		if !e.policy.Bookable(start, now) {
			continue
		}
		if len(e.freeMachines(machines, busy, start)) > 0 {
			free = append(free, start)
		}
	}
	return free, nil
}

// FreeResourcesAt lists the in-service machines of the category with no live
// reservation overlapping the slot that starts at start.
func (e *Engine) FreeResourcesAt(ctx context.Context, start time.Time, category model.Category) ([]model.Machine, error) {
	if err := e.CheckSlot(start, category); err != nil {
		return nil, err
	}

	machines, err := e.inService(ctx, category)
	if err != nil {
		return nil, err
	}
	if len(machines) == 0 {
		return nil, model.ErrCapacityUnavailable
	}

	busy, err := e.busyByMachine(ctx, machines, start, start.Add(e.longestSlot(machines)))
	if err != nil {
		return nil, err
	}
	return e.freeMachines(machines, busy, start), nil
}

// CheckSlot validates a requested slot start against the window and policy.
// Without a category only the start has to lie inside the window; the
// machines whose slot does not fit are filtered out later.
func (e *Engine) CheckSlot(start time.Time, category model.Category) error {
	if category == "" {
		opens, closes := e.policy.Window(start)
		if start.Before(opens) || !start.Before(closes) {
			return model.ErrInvalidSlot
		}
	} else if !e.policy.Within(start, category) {
		return model.ErrInvalidSlot
	}
	if !e.policy.Bookable(start, e.now()) {
		return model.ErrSlotClosed
	}
	return nil
}

// slotStarts merges the slot grids of the machines' categories.
func (e *Engine) slotStarts(day time.Time, machines []model.Machine) []time.Time {
	seen := make(map[model.Category]bool)
	var starts []time.Time
	for _, m := range machines {
		if seen[m.Category] {
			continue
		}
		seen[m.Category] = true
		starts = append(starts, e.policy.Slots(day, m.Category)...)
	}
	slices.SortFunc(starts, func(a, b time.Time) int { return a.Compare(b) })
	return slices.CompactFunc(starts, time.Time.Equal)
}

func (e *Engine) longestSlot(machines []model.Machine) time.Duration {
	var longest time.Duration
	for _, m := range machines {
		longest = max(longest, e.policy.SlotFor(m.Category))
	}
	return longest
}

func (e *Engine) inService(ctx context.Context, category model.Category) ([]model.Machine, error) {
	return e.store.ListResources(ctx, store.ResourceFilter{
		Category: category,
		Status:   model.MachineInService,
	})
}

// busyByMachine loads, in one query, the live reservations of the machines
// that intersect [from, to) and groups them by machine.
func (e *Engine) busyByMachine(ctx context.Context, machines []model.Machine, from, to time.Time) (map[int64][]model.Reservation, error) {
	ids := make([]int64, len(machines))
	for i, m := range machines {
		ids[i] = m.ID
	}

	reservations, err := e.store.ListReservations(ctx, store.ReservationFilter{
		MachineIDs:  ids,
		Statuses:    model.LiveStatuses,
		OverlapFrom: from,
		OverlapTo:   to,
	})
	if err != nil {
		return nil, err
	}

	busy := make(map[int64][]model.Reservation, len(machines))
	for _, r := range reservations {
		busy[r.MachineID] = append(busy[r.MachineID], r)
	}
	e.log.Debug("loaded busy windows",
		zap.Int("machines", len(machines)),
		zap.Int("reservations", len(reservations)),
		zap.Time("from", from),
	)
	return busy, nil
}

// freeMachines is shared by FreeSlots and FreeResourcesAt so the aggregate and
// the detail view never disagree. A machine is free at start when its
// category's slot fits the window and overlaps no live reservation.
func (e *Engine) freeMachines(machines []model.Machine, busy map[int64][]model.Reservation, start time.Time) []model.Machine {
	free := make([]model.Machine, 0, len(machines))
	for _, m := range machines {
		if !e.policy.Within(start, m.Category) {
			continue
		}
		if !overlapsAny(busy[m.ID], start, start.Add(e.policy.SlotFor(m.Category))) {
			free = append(free, m)
		}
	}
	return free
}

func overlapsAny(reservations []model.Reservation, start, end time.Time) bool {
	for _, r := range reservations {
		if r.StartAt.Before(end) && r.EndAt.After(start) {
			return true
		}
	}
	return false
}
