// Package person defines the typed record loaded by the CSV importer.
package person

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Date layouts. Input is day/month/year; storage is ISO so that lexical
// order matches date order.
const (
	InputDateLayout = "2/1/2006"
	ISODateLayout   = "2006-01-02"
)

var (
	// ErrMissingField indicates a required cell (Name, Surname, DateOfBirth) is empty.
	ErrMissingField = errors.New("missing required field")
	// ErrInvalidDate indicates DateOfBirth is not a DD/MM/YYYY calendar date.
	ErrInvalidDate = errors.New("invalid date of birth")
	// ErrInvalidAge indicates a non-empty Age cell that is not an integer.
	ErrInvalidAge = errors.New("invalid age")
)

// Fields holds the raw, already-trimmed cells of one CSV row.
type Fields struct {
	Name        string
	Surname     string
	Initials    string
	Age         string
	DateOfBirth string
}

// Record is one validated person row.
type Record struct {
	Name     string
	Surname  string
	Initials string
	// Age is nil when the cell was empty.
	Age         *int
	DateOfBirth time.Time
}

// Parse validates raw cells and converts them into a Record.
func Parse(f Fields) (Record, error) {
	switch {
	case f.Name == "":
		return Record{}, fmt.Errorf("%w: Name", ErrMissingField)
	case f.Surname == "":
		return Record{}, fmt.Errorf("%w: Surname", ErrMissingField)
	case f.DateOfBirth == "":
		return Record{}, fmt.Errorf("%w: DateOfBirth", ErrMissingField)
	}

	dob, err := ParseDate(f.DateOfBirth)
	if err != nil {
		return Record{}, err
	}

	rec := Record{
		Name:        f.Name,
		Surname:     f.Surname,
		Initials:    f.Initials,
		DateOfBirth: dob,
	}

	if f.Age != "" {
		age, err := strconv.Atoi(f.Age)
		if err != nil {
			return Record{}, fmt.Errorf("%w %q", ErrInvalidAge, f.Age)
		}
		rec.Age = &age
	}

	return rec, nil
}

// ParseDate parses a DD/MM/YYYY date. Single-digit day and month are accepted.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(InputDateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w %q", ErrInvalidDate, s)
	}
	return t, nil
}

// ISODate returns the date of birth as YYYY-MM-DD.
func (r Record) ISODate() string {
	return r.DateOfBirth.Format(ISODateLayout)
}

// Key returns the identity of the record: name, surname and ISO date of birth.
func (r Record) Key() string {
	return r.Name + "|" + r.Surname + "|" + r.ISODate()
}
