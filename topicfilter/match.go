// Package topicfilter implements broker-style matching of '/'-delimited topic
// names against subscription filters.
//
// Filters may contain two wildcards:
//
//	+   matches exactly one topic level ("home/+/temp" matches "home/kitchen/temp")
//	#   matches the remaining levels, including none ("home/#" matches "home")
//
// Only the filter side is interpreted; a '+' or '#' inside the topic name is an
// ordinary character.
package topicfilter

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// Separator delimits topic levels.
	Separator = "/"

	// SingleLevel is the single-level wildcard.
	SingleLevel = "+"

	// MultiLevel is the multi-level wildcard.
	MultiLevel = "#"
)

var (
	// ErrEmptyFilter is returned by Validate for an empty filter.
	ErrEmptyFilter = errors.New("topic filter is empty")

	// ErrInvalidFilter is returned by Validate when a wildcard is misplaced.
	ErrInvalidFilter = errors.New("invalid topic filter")
)

// Match reports whether filter matches topic.
//
// An empty filter or topic never matches. A '+' level needs a non-empty
// topic level in its position. A '#' level short-circuits to a
// match as soon as the walk reaches it, so "home/#" matches "home" as in
// MQTT 3.1.1. Without '#', filter and topic must have the same number of
// levels.
//
// Match is pure and safe for concurrent use.
func Match(filter, topic string) bool {
	if filter == "" || topic == "" {
		return false
	}
	if filter == topic {
		return true
	}
	if filter == MultiLevel {
		return true
	}

	filterLevels := strings.Split(filter, Separator)
	topicLevels := strings.Split(topic, Separator)

	for i, level := range filterLevels {
		if level == MultiLevel {
			return true
		}
		if i >= len(topicLevels) {
			return false
		}
		if level == SingleLevel {
			if topicLevels[i] == "" {
				return false
			}
			continue
		}
		if level != topicLevels[i] {
			return false
		}
	}

	return len(filterLevels) == len(topicLevels)
}

// HasWildcard reports whether filter contains a '+' or '#' level.
func HasWildcard(filter string) bool {
	for _, level := range strings.Split(filter, Separator) {
		if level == SingleLevel || level == MultiLevel {
			return true
		}
	}
	return false
}

// Validate checks that filter is something a broker would accept: not empty,
// '#' only as the last level, and wildcards never mixed with other characters
// inside a level.
func Validate(filter string) error {
	if filter == "" {
		return ErrEmptyFilter
	}

	levels := strings.Split(filter, Separator)
	for i, level := range levels {
		switch {
		case level == MultiLevel:
			if i != len(levels)-1 {
				return fmt.Errorf("%w: %q: '#' must be the last level", ErrInvalidFilter, filter)
			}
		case level == SingleLevel:
		case strings.ContainsAny(level, SingleLevel+MultiLevel):
			return fmt.Errorf("%w: %q: wildcard must occupy a whole level", ErrInvalidFilter, filter)
		}
	}

	return nil
}
