package schedule

import (
	"context"
	"time"

	"laundry-booking-backend/internal/model"
)

// LoadLevel is the coarse calendar indicator of a day.
type LoadLevel string

const (
	LoadFree        LoadLevel = "free"
	LoadPartial     LoadLevel = "partial"
	LoadFull        LoadLevel = "full"
	LoadUnavailable LoadLevel = "unavailable"
)

// DayLoad classifies a day by its booked count and the daily capacity.
func DayLoad(used, capacity int) LoadLevel {
	switch {
	case capacity <= 0:
		return LoadUnavailable
	case used >= capacity:
		return LoadFull
	case used == 0:
		return LoadFree
	default:
		return LoadPartial
	}
}

// DayStatus is one calendar cell.
type DayStatus struct {
	Day      int       `json:"day"`
	Booked   int       `json:"booked"`
	Capacity int       `json:"capacity"`
	Load     LoadLevel `json:"load"`
}

// MonthOverview combines DailyWorkload and DailyCapacity into one entry per
// day of the month.
func (e *Engine) MonthOverview(ctx context.Context, year int, month time.Month, category model.Category) ([]DayStatus, error) {
	capacity, err := e.DailyCapacity(ctx, category)
	if err != nil {
		return nil, err
	}
	workload, err := e.DailyWorkload(ctx, year, month, category)
	if err != nil {
		return nil, err
	}

	days := time.Date(year, month+1, 0, 0, 0, 0, 0, e.policy.Location).Day()
	out := make([]DayStatus, 0, days)
	for d := 1; d <= days; d++ {
		used := workload[d]
		out = append(out, DayStatus{Day: d, Booked: used, Capacity: capacity, Load: DayLoad(used, capacity)})
	}
	return out, nil
}
