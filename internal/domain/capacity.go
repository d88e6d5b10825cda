package domain

// Capacity is the amount of work a user can absorb per day.
type Capacity struct {
	Weekday Hours `db:"capacity_weekday" json:"weekday"`
	Weekend Hours `db:"capacity_weekend" json:"weekend"`
}

// DefaultCapacity matches the defaults of newly created users.
var DefaultCapacity = Capacity{Weekday: WholeHours(8), Weekend: WholeHours(4)}

// Of returns the capacity of day: Weekday for Mon-Fri, Weekend otherwise.
func (c Capacity) Of(day Date) Hours {
	if day.IsWeekend() {
		return c.Weekend
	}
	return c.Weekday
}

// Max is the largest amount any single day can hold.
func (c Capacity) Max() Hours {
	if c.Weekday > c.Weekend {
		return c.Weekday
	}
	return c.Weekend
}

func (c Capacity) Validate() error {
	verr := &ValidationError{}
	for field, v := range map[string]Hours{"capacity_weekday": c.Weekday, "capacity_weekend": c.Weekend} {
		if v < 0 || v > WholeHours(24) {
			verr.Add(field, "must be between 0 and 24")
		}
	}
	return verr.OrNil()
}

// User is the owner of tasks. Only the capacity is consumed by scheduling.
type User struct {
	ID   int64  `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
	Capacity
}

// FirstDayWithCapacity scans days [from, from+maxDays) and returns the first
// one whose remaining capacity (capacity minus scheduled[day]) is at least
// need. An exact fit counts.
func FirstDayWithCapacity(c Capacity, scheduled map[Date]Hours, from Date, maxDays int, need Hours) (Date, error) {
	if need > c.Weekday && need > c.Weekend {
		return Date{}, &CapacityExhaustedError{Duration: need}
	}
	for i := 0; i < maxDays; i++ {
		day := from.AddDays(i)
		if c.Of(day)-scheduled[day] >= need {
			return day, nil
		}
	}
	return Date{}, &CapacityExhaustedError{Duration: need, Days: maxDays}
}
