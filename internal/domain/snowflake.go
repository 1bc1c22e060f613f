package domain

import (
	"bytes"
	"fmt"
	"strconv"
)

// Snowflake is a source-native 64-bit identifier. Values can exceed the
// 53-bit float range, so they are carried as strings on every JSON surface
// and must never round-trip through a float64.
type Snowflake uint64

func ParseSnowflake(s string) (Snowflake, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse snowflake %q: %w", s, err)
	}
	return Snowflake(v), nil
}

func (s Snowflake) String() string {
	return strconv.FormatUint(uint64(s), 10)
}

// MarshalText makes Snowflake usable as a JSON object key.
func (s Snowflake) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Snowflake) UnmarshalText(data []byte) error {
	v, err := ParseSnowflake(string(data))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

func (s Snowflake) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// UnmarshalJSON accepts both quoted and bare integer forms; checkpoint files
// written by earlier versions stored ids as numbers.
func (s *Snowflake) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(data, `"`)
	return s.UnmarshalText(data)
}
