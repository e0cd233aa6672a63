package domain

import (
	"cmp"
	"sort"
)

// Compare is the single total order over movies used for "lower", "greater"
// and ascending listings. Records are ordered by OscarsCount, then Name, then
// Coordinates.X, then Coordinates.Y. ID and CreationDate do not participate.
func Compare(a, b Movie) int {
	if c := cmp.Compare(a.OscarsCount, b.OscarsCount); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Name, b.Name); c != 0 {
		return c
	}
	ax, ay := coords(a)
	bx, by := coords(b)
	if c := cmp.Compare(ax, bx); c != 0 {
		return c
	}
	return cmp.Compare(ay, by)
}

func coords(m Movie) (float64, int32) {
	if m.Coordinates == nil {
		return 0, 0
	}
	return m.Coordinates.X, m.Coordinates.Y
}

// SortAscending orders movies by Compare, breaking ties by ascending ID.
func SortAscending(movies []Movie) {
	sort.SliceStable(movies, func(i, j int) bool {
		if c := Compare(movies[i], movies[j]); c != 0 {
			return c < 0
		}
		return movies[i].ID < movies[j].ID
	})
}
