package usecase

import (
	"math"
	"time"

	"photo-dispatch/internal/data/entity"
	"photo-dispatch/pkg/utils"
)

// FeeCalculator prices a booking at match time.
type FeeCalculator struct {
	cfg      utils.FeeConfig
	loc      *time.Location
	holidays map[string]bool
}

func NewFeeCalculator(cfg utils.FeeConfig, loc *time.Location) *FeeCalculator {
	holidays := make(map[string]bool, len(cfg.Holidays))
	for _, d := range cfg.Holidays {
		holidays[d] = true
	}
	if loc == nil {
		loc = time.UTC
	}
	return &FeeCalculator{cfg: cfg, loc: loc, holidays: holidays}
}

func (f *FeeCalculator) Compute(base int64, urgency entity.Urgency, at time.Time) entity.Fees {
	local := at.In(f.loc)

	fees := entity.Fees{
		BaseAmount: base,
		IsRush:     urgency == entity.UrgencyNow,
		IsHoliday:  f.holidays[local.Format("2006-01-02")],
		IsNight:    f.isNight(local.Hour()),
	}
	if fees.IsRush {
		fees.RushFee = f.cfg.Rush
	}
	if fees.IsHoliday {
		fees.HolidayFee = f.cfg.Holiday
	}
	if fees.IsNight {
		fees.NightFee = f.cfg.Night
	}

	fees.TotalAmount = fees.BaseAmount + fees.RushFee + fees.HolidayFee + fees.NightFee

	platform := int64(math.Round(float64(fees.TotalAmount) * f.cfg.PlatformRate))
	platform = max(0, min(platform, fees.TotalAmount))
	fees.PlatformFee = platform
	fees.PhotographerEarnings = fees.TotalAmount - platform

	return fees
}

// isNight handles windows that wrap midnight (start > end).
func (f *FeeCalculator) isNight(hour int) bool {
	start, end := f.cfg.NightStartHour, f.cfg.NightEndHour
	switch {
	case start == end:
		return false
	case start < end:
		return hour >= start && hour < end
	default:
		return hour >= start || hour < end
	}
}
