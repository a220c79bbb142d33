package handler

import (
	"encoding/json"
	"time"
)

func init() {
	_ = Default.Register("unixtime", UnixTime{})
}

// UnixTime stores time.Time properties as unix seconds
type UnixTime struct{}

func (UnixTime) Get(input int64, _ *PropertyHandlerGetOptions) time.Time {
	return time.Unix(input, 0).UTC()
}

func (UnixTime) Set(input time.Time, _ *PropertyHandlerSetOptions) int64 {
	if input.IsZero() {
		return 0
	}
	return input.Unix()
}

// JSON stores properties of type T as JSON text, register one per type:
//
//	handler.Default.Register("tags", handler.JSON[[]string]{})
type JSON[T any] struct{}

func (JSON[T]) Get(input string, _ *PropertyHandlerGetOptions) (T, error) {
	var value T
	if input == "" {
		return value, nil
	}
	err := json.Unmarshal([]byte(input), &value)
	return value, err
}

func (JSON[T]) Set(input T, _ *PropertyHandlerSetOptions) (string, error) {
	data, err := json.Marshal(input)
	return string(data), err
}
