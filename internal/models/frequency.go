package models

import (
	"encoding/json"
	"fmt"
	"slices"
	"time"
)

type FrequencyKind string

const (
	FrequencyDaily          FrequencyKind = "daily"
	FrequencySpecificDays   FrequencyKind = "specific_days"
	FrequencyTimesPerPeriod FrequencyKind = "x_times_per_period"
	FrequencyInterval       FrequencyKind = "interval"
)

type Period string

const (
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
)

// FrequencyConfig is a closed set of schedule kinds. The unexported marker
// method keeps other packages from adding variants, so a type switch over
// Daily, SpecificDays, TimesPerPeriod and Interval is exhaustive.
type FrequencyConfig interface {
	Kind() FrequencyKind
	frequency()
}

// Daily is due every day except the listed weekdays.
type Daily struct {
	Exceptions []time.Weekday `json:"exceptions,omitempty"`
}

// SpecificDays is due only on the listed weekdays.
type SpecificDays struct {
	Days []time.Weekday `json:"days"`
}

// TimesPerPeriod is always available; the completion count enforces the quota.
type TimesPerPeriod struct {
	Times  int    `json:"times"`
	Period Period `json:"period"`
}

// Interval is due every N days.
type Interval struct {
	N int `json:"n"`
}

func (Daily) Kind() FrequencyKind          { return FrequencyDaily }
func (SpecificDays) Kind() FrequencyKind   { return FrequencySpecificDays }
func (TimesPerPeriod) Kind() FrequencyKind { return FrequencyTimesPerPeriod }
func (Interval) Kind() FrequencyKind       { return FrequencyInterval }

func (Daily) frequency()          {}
func (SpecificDays) frequency()   {}
func (TimesPerPeriod) frequency() {}
func (Interval) frequency()       {}

// ContainsWeekday reports whether wd is present in days.
func ContainsWeekday(days []time.Weekday, wd time.Weekday) bool {
	return slices.Contains(days, wd)
}

// Frequency wraps a FrequencyConfig so it can be embedded in JSON documents
// as a tagged object: {"type": "specific_days", "days": [1, 3, 5]}.
type Frequency struct {
	Config FrequencyConfig
}

func NewFrequency(cfg FrequencyConfig) Frequency {
	return Frequency{Config: cfg}
}

// Get returns the wrapped config, defaulting to Daily with no exceptions.
func (f Frequency) Get() FrequencyConfig {
	if f.Config == nil {
		return Daily{}
	}
	return f.Config
}

func (f Frequency) MarshalJSON() ([]byte, error) {
	switch c := f.Get().(type) {
	case Daily:
		return json.Marshal(struct {
			Type FrequencyKind `json:"type"`
			Daily
		}{c.Kind(), c})
	case SpecificDays:
		return json.Marshal(struct {
			Type FrequencyKind `json:"type"`
			SpecificDays
		}{c.Kind(), c})
	case TimesPerPeriod:
		return json.Marshal(struct {
			Type FrequencyKind `json:"type"`
			TimesPerPeriod
		}{c.Kind(), c})
	case Interval:
		return json.Marshal(struct {
			Type FrequencyKind `json:"type"`
			Interval
		}{c.Kind(), c})
	default:
		panic(fmt.Sprintf("models: unhandled frequency config %T", c))
	}
}

func (f *Frequency) UnmarshalJSON(data []byte) error {
	var head struct {
		Type FrequencyKind `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return err
	}

	switch head.Type {
	case FrequencyDaily:
		var c Daily
		if err := json.Unmarshal(data, &c); err != nil {
			return err
		}
		f.Config = c
	case FrequencySpecificDays:
		var c SpecificDays
		if err := json.Unmarshal(data, &c); err != nil {
			return err
		}
		f.Config = c
	case FrequencyTimesPerPeriod:
		var c TimesPerPeriod
		if err := json.Unmarshal(data, &c); err != nil {
			return err
		}
		f.Config = c
	case FrequencyInterval:
		var c Interval
		if err := json.Unmarshal(data, &c); err != nil {
			return err
		}
		f.Config = c
	default:
		return fmt.Errorf("unknown frequency type %q", head.Type)
	}
	return nil
}
