package generic

import (
	"time"
)

// =============================================================================
// TIME POINT - Ledger key
// =============================================================================

type TimePoint struct {
	Time        time.Time
	Granularity Granularity
}

type Granularity int

const (
	GranularityMinute Granularity = iota
	GranularityHour
	GranularityDay
)

// Constructors
func NewTimePoint(year int, month time.Month, day int) TimePoint {
	return TimePoint{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC), Granularity: GranularityDay}
}

func At(t time.Time) TimePoint {
	return TimePoint{Time: t.UTC().Truncate(time.Minute), Granularity: GranularityMinute}
}

func Now() TimePoint { return At(time.Now()) }

// Comparison
func (tp TimePoint) Before(other TimePoint) bool        { return tp.normalize().Before(other.normalize()) }
func (tp TimePoint) Equal(other TimePoint) bool         { return tp.normalize().Equal(other.normalize()) }
func (tp TimePoint) After(other TimePoint) bool         { return tp.normalize().After(other.normalize()) }
func (tp TimePoint) BeforeOrEqual(other TimePoint) bool { return !tp.After(other) }
func (tp TimePoint) AfterOrEqual(other TimePoint) bool  { return !tp.Before(other) }

func (tp TimePoint) normalize() time.Time {
	t := tp.Time.UTC()
	switch tp.Granularity {
	case GranularityDay:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	case GranularityHour:
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, time.UTC)
	default:
		return t
	}
}

// Arithmetic

func (tp TimePoint) IsZero() bool { return tp.Time.IsZero() }

func (tp TimePoint) String() string {
	switch tp.Granularity {
	case GranularityDay:
		return tp.Time.Format("2006-01-02")
	case GranularityHour:
		return tp.Time.Format("2006-01-02 15:00")
	default:
		return tp.Time.Format(time.RFC3339)
	}
}

// MinutesBetween returns whole minutes from a to b, truncating seconds.
func MinutesBetween(from, to time.Time) int {
	return int(to.Sub(from) / time.Minute)
}
