package client

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Clark-Hu/movies-db/internal/domain"
)

// BirthdayLayout is the accepted director birthday format, read in the local
// time zone.
const BirthdayLayout = "2006-1-2 15:4"

var errIncompleteInput = errors.New("input ended before the record was complete")

// lineSource yields input lines from stdin or a script file.
type lineSource struct {
	r           *bufio.Reader
	interactive bool
}

func newLineSource(r io.Reader, interactive bool) *lineSource {
	return &lineSource{r: bufio.NewReader(r), interactive: interactive}
}

// ReadLine returns the next line without its terminator. A final unterminated
// line is returned before io.EOF.
func (s *lineSource) ReadLine() (string, error) {
	line, err := s.r.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && line != "" {
			return strings.TrimRight(line, "\r\n"), nil
		}
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// fieldReader prompts for record fields, repeating a prompt until the answer
// parses.
type fieldReader struct {
	src *lineSource
	out io.Writer
	loc *time.Location
}

func (f *fieldReader) ask(prompt string, parse func(string) error) error {
	for {
		if f.src.interactive {
			fmt.Fprint(f.out, prompt)
		}
		line, err := f.src.ReadLine()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return errIncompleteInput
			}
			return err
		}
		if err := parse(strings.TrimSpace(line)); err != nil {
			fmt.Fprintf(f.out, "error: %v, try again\n", err)
			continue
		}
		return nil
	}
}

func nonEmpty(dst *string) func(string) error {
	return func(s string) error {
		if s == "" {
			return errors.New("value must not be empty")
		}
		*dst = s
		return nil
	}
}

// readMovie fills every client-supplied field. A non-empty name skips the
// name prompt.
func (f *fieldReader) readMovie(name string) (domain.Movie, error) {
	m := domain.Movie{Name: name, Coordinates: &domain.Coordinates{}}
	steps := []struct {
		prompt string
		parse  func(string) error
	}{
		{"x (<= 266): ", func(s string) error {
			x, err := strconv.ParseFloat(s, 64)
			if err != nil || math.IsNaN(x) || math.IsInf(x, 0) {
				return errors.New("x must be a finite number")
			}
			if x > domain.MaxCoordinateX {
				return fmt.Errorf("x must be <= %g", domain.MaxCoordinateX)
			}
			m.Coordinates.X = x
			return nil
		}},
		{"y: ", func(s string) error {
			y, err := strconv.ParseInt(s, 10, 32)
			if err != nil {
				return errors.New("y must be an integer")
			}
			m.Coordinates.Y = int32(y)
			return nil
		}},
		{"oscars count (> 0): ", func(s string) error {
			n, err := strconv.ParseInt(s, 10, 64)
			if err != nil || n <= 0 {
				return errors.New("oscars count must be an integer greater than 0")
			}
			m.OscarsCount = n
			return nil
		}},
		{"genre [" + domain.Choices(domain.Genres) + "]: ", func(s string) (err error) {
			m.Genre, err = domain.ParseGenre(s)
			return err
		}},
		{"mpaa rating [" + domain.Choices(domain.MpaaRatings) + "]: ", func(s string) (err error) {
			m.MpaaRating, err = domain.ParseMpaaRating(s)
			return err
		}},
	}

	if m.Name == "" {
		if err := f.ask("name: ", nonEmpty(&m.Name)); err != nil {
			return domain.Movie{}, err
		}
	}
	for _, step := range steps {
		if err := f.ask(step.prompt, step.parse); err != nil {
			return domain.Movie{}, err
		}
	}
	director, err := f.readPerson()
	if err != nil {
		return domain.Movie{}, err
	}
	m.Director = director
	return m, nil
}

func (f *fieldReader) readPerson() (*domain.Person, error) {
	p := &domain.Person{Location: &domain.Location{}}
	steps := []struct {
		prompt string
		parse  func(string) error
	}{
		{"director name: ", nonEmpty(&p.Name)},
		{"director birthday (Y-M-D H:m): ", func(s string) error {
			t, err := time.ParseInLocation(BirthdayLayout, s, f.loc)
			if err != nil {
				return errors.New("birthday must look like 1970-3-4 12:30")
			}
			p.Birthday = t
			return nil
		}},
		{"director passport id: ", func(s string) error {
			if s == "" {
				return errors.New("passport id must not be empty")
			}
			if utf8.RuneCountInString(s) > domain.MaxPassportIDLength {
				return fmt.Errorf("passport id must be at most %d characters", domain.MaxPassportIDLength)
			}
			p.PassportID = s
			return nil
		}},
		{"director hair color [" + domain.Choices(domain.Colors) + "]: ", func(s string) (err error) {
			p.HairColor, err = domain.ParseColor(s)
			return err
		}},
		{"location x: ", func(s string) error {
			x, err := strconv.ParseInt(s, 10, 32)
			if err != nil {
				return errors.New("location x must be an integer")
			}
			p.Location.X = int32(x)
			return nil
		}},
		{"location y: ", func(s string) error {
			y, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				return errors.New("location y must be an integer")
			}
			p.Location.Y = y
			return nil
		}},
		{"location name: ", nonEmpty(&p.Location.Name)},
	}
	for _, step := range steps {
		if err := f.ask(step.prompt, step.parse); err != nil {
			return nil, err
		}
	}
	return p, nil
}
