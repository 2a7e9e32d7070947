package authz

import (
	"fmt"
	"strings"
)

// Level is an access level. Levels are totally ordered.
type Level int

const (
	None Level = iota
	Read
	Write
	Manage
)

var levelNames = [...]string{"None", "Read", "Write", "Manage"}

// String returns the level name.
func (l Level) String() string {
	if l.Valid() {
		return levelNames[l]
	}
	return fmt.Sprintf("Level(%d)", int(l))
}

// Valid reports whether l is one of the four defined levels.
func (l Level) Valid() bool {
	return l >= None && l <= Manage
}

// ParseLevel parses a level name, ignoring case.
func ParseLevel(s string) (Level, error) {
	for i, name := range levelNames {
		if strings.EqualFold(s, name) {
			return Level(i), nil
		}
	}
	return None, &Error{Code: ErrCodeInvalidLevel, Message: fmt.Sprintf("unknown access level %q", s)}
}

// MarshalText implements encoding.TextMarshaler.
func (l Level) MarshalText() ([]byte, error) {
	if !l.Valid() {
		return nil, &Error{Code: ErrCodeInvalidLevel, Message: fmt.Sprintf("invalid access level %d", int(l))}
	}
	return []byte(l.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *Level) UnmarshalText(text []byte) error {
	parsed, err := ParseLevel(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// Permission is a subject's access level on a resource.
type Permission struct {
	Subject  string `json:"subject" yaml:"subject"`
	Resource string `json:"resource" yaml:"resource"`
	Level    Level  `json:"level" yaml:"level"`
}
