package domain

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"
)

// MaxCoordinateX is the inclusive upper bound for Coordinates.X.
const MaxCoordinateX = 266.0

// MaxPassportIDLength bounds Person.PassportID in characters.
const MaxPassportIDLength = 39

// ErrInvalidMovie is wrapped by every validation failure.
var ErrInvalidMovie = errors.New("domain: invalid movie")

// ValidationError reports the first field that failed validation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidMovie
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// Coordinates places a movie on the catalogue grid.
type Coordinates struct {
	X float64 `json:"x"`
	Y int32   `json:"y"`
}

// Location is where a director can be found.
type Location struct {
	X    int32  `json:"x"`
	Y    int64  `json:"y"`
	Name string `json:"name"`
}

// Person describes a movie director.
type Person struct {
	Name       string    `json:"name"`
	Birthday   time.Time `json:"birthday"`
	PassportID string    `json:"passportID"`
	HairColor  Color     `json:"hairColor"`
	Location   *Location `json:"location"`
}

// Movie is the record stored in the collection. ID and CreationDate are
// owned by the collection and ignored on input.
type Movie struct {
	ID           int64        `json:"id"`
	Name         string       `json:"name"`
	Coordinates  *Coordinates `json:"coordinates"`
	CreationDate time.Time    `json:"creationDate"`
	Genre        Genre        `json:"genre"`
	MpaaRating   MpaaRating   `json:"mpaaRating"`
	OscarsCount  int64        `json:"oscarsCount"`
	Director     *Person      `json:"director"`
}

// Validate checks every client-supplied field. ID and CreationDate are not
// inspected.
func (m Movie) Validate() error {
	if strings.TrimSpace(m.Name) == "" {
		return invalid("name", "must not be empty")
	}
	if m.Coordinates == nil {
		return invalid("coordinates", "is required")
	}
	if math.IsNaN(m.Coordinates.X) || math.IsInf(m.Coordinates.X, 0) {
		return invalid("coordinates.x", "must be a finite number")
	}
	if m.Coordinates.X > MaxCoordinateX {
		return invalid("coordinates.x", fmt.Sprintf("must be <= %g", MaxCoordinateX))
	}
	if !m.Genre.Valid() {
		return invalid("genre", fmt.Sprintf("unknown value %q", m.Genre))
	}
	if !m.MpaaRating.Valid() {
		return invalid("mpaaRating", fmt.Sprintf("unknown value %q", m.MpaaRating))
	}
	if m.OscarsCount <= 0 {
		return invalid("oscarsCount", "must be greater than 0")
	}
	if m.Director == nil {
		return invalid("director", "is required")
	}
	return m.Director.validate()
}

func (p Person) validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return invalid("director.name", "must not be empty")
	}
	if p.Birthday.IsZero() {
		return invalid("director.birthday", "is required")
	}
	n := utf8.RuneCountInString(p.PassportID)
	if n == 0 {
		return invalid("director.passportID", "must not be empty")
	}
	if n > MaxPassportIDLength {
		return invalid("director.passportID", fmt.Sprintf("must be at most %d characters", MaxPassportIDLength))
	}
	if !p.HairColor.Valid() {
		return invalid("director.hairColor", fmt.Sprintf("unknown value %q", p.HairColor))
	}
	if p.Location == nil {
		return invalid("director.location", "is required")
	}
	if strings.TrimSpace(p.Location.Name) == "" {
		return invalid("director.location.name", "must not be empty")
	}
	return nil
}

// Clone returns a deep copy so callers never share nested pointers with the
// collection.
func (m Movie) Clone() Movie {
	out := m
	if m.Coordinates != nil {
		c := *m.Coordinates
		out.Coordinates = &c
	}
	if m.Director != nil {
		d := *m.Director
		if m.Director.Location != nil {
			l := *m.Director.Location
			d.Location = &l
		}
		out.Director = &d
	}
	return out
}

// Equal reports field-wise equality, comparing instants rather than
// time.Time representations.
func (m Movie) Equal(o Movie) bool {
	return m.ID == o.ID &&
		m.CreationDate.Equal(o.CreationDate) &&
		m.SameContent(o)
}

// SameContent compares the client-supplied fields only.
func (m Movie) SameContent(o Movie) bool {
	if m.Name != o.Name || m.Genre != o.Genre || m.MpaaRating != o.MpaaRating || m.OscarsCount != o.OscarsCount {
		return false
	}
	if (m.Coordinates == nil) != (o.Coordinates == nil) {
		return false
	}
	if m.Coordinates != nil && *m.Coordinates != *o.Coordinates {
		return false
	}
	if (m.Director == nil) != (o.Director == nil) {
		return false
	}
	if m.Director == nil {
		return true
	}
	a, b := m.Director, o.Director
	if a.Name != b.Name || a.PassportID != b.PassportID || a.HairColor != b.HairColor || !a.Birthday.Equal(b.Birthday) {
		return false
	}
	if (a.Location == nil) != (b.Location == nil) {
		return false
	}
	return a.Location == nil || *a.Location == *b.Location
}
