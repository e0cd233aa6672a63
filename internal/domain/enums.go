package domain

import (
	"fmt"
	"strings"
)

// Genre enumerates movie genres.
type Genre string

const (
	GenreComedy   Genre = "COMEDY"
	GenreTragedy  Genre = "TRAGEDY"
	GenreThriller Genre = "THRILLER"
)

// Genres lists the accepted genres in declaration order.
var Genres = []Genre{GenreComedy, GenreTragedy, GenreThriller}

func (g Genre) Valid() bool {
	switch g {
	case GenreComedy, GenreTragedy, GenreThriller:
		return true
	}
	return false
}

// MpaaRating enumerates MPAA ratings.
type MpaaRating string

const (
	RatingG    MpaaRating = "G"
	RatingPG13 MpaaRating = "PG_13"
	RatingR    MpaaRating = "R"
)

var MpaaRatings = []MpaaRating{RatingG, RatingPG13, RatingR}

func (r MpaaRating) Valid() bool {
	switch r {
	case RatingG, RatingPG13, RatingR:
		return true
	}
	return false
}

// Color enumerates director hair colors.
type Color string

const (
	ColorYellow Color = "YELLOW"
	ColorWhite  Color = "WHITE"
	ColorBrown  Color = "BROWN"
)

var Colors = []Color{ColorYellow, ColorWhite, ColorBrown}

func (c Color) Valid() bool {
	switch c {
	case ColorYellow, ColorWhite, ColorBrown:
		return true
	}
	return false
}

// ParseGenre accepts any casing.
func ParseGenre(s string) (Genre, error) {
	g := Genre(strings.ToUpper(strings.TrimSpace(s)))
	if !g.Valid() {
		return "", fmt.Errorf("unknown genre %q, want one of %s", s, Choices(Genres))
	}
	return g, nil
}

func ParseMpaaRating(s string) (MpaaRating, error) {
	r := MpaaRating(strings.ToUpper(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", fmt.Errorf("unknown mpaa rating %q, want one of %s", s, Choices(MpaaRatings))
	}
	return r, nil
}

func ParseColor(s string) (Color, error) {
	c := Color(strings.ToUpper(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", fmt.Errorf("unknown hair color %q, want one of %s", s, Choices(Colors))
	}
	return c, nil
}

// Choices renders accepted enum values for prompts and error messages.
func Choices[T ~string](values []T) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = string(v)
	}
	return strings.Join(parts, ", ")
}
