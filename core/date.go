package core

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
)

const DateLayout = "2006-01-02"

// NullDate is a nullable calendar date (SQL DATE) exchanged as "YYYY-MM-DD" in JSON.
type NullDate struct {
	null.Time
}

func NullDateFrom(t time.Time) NullDate {
	return NullDate{null.TimeFrom(t)}
}

func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, errors.Errorf("invalid date %q, expected YYYY-MM-DD", s)
	}
	return t, nil
}

func (d NullDate) MarshalJSON() ([]byte, error) {
	if !d.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(d.Time.Time.Format(DateLayout))
}

func (d *NullDate) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		d.Valid = false
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		d.Valid = false
		return nil
	}
	// accept full timestamps too, keeping the date part
	if len(s) > len(DateLayout) {
		s = s[:len(DateLayout)]
	}
	t, err := ParseDate(s)
	if err != nil {
		return err
	}
	d.Time = null.TimeFrom(t)
	return nil
}
