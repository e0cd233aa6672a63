package store

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/Clark-Hu/movies-db/internal/domain"
)

// documentVersion tags the JSON snapshot written by file and object backends.
const documentVersion = 1

type document struct {
	Version int            `json:"version"`
	Movies  []domain.Movie `json:"movies"`
}

func encodeDocument(movies []domain.Movie) ([]byte, error) {
	if movies == nil {
		movies = []domain.Movie{}
	}
	payload, err := json.MarshalIndent(document{Version: documentVersion, Movies: movies}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return append(payload, '\n'), nil
}

// decodeDocument treats an empty payload as an empty collection.
func decodeDocument(payload []byte) ([]domain.Movie, error) {
	if len(bytes.TrimSpace(payload)) == 0 {
		return nil, nil
	}
	var doc document
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	if doc.Version != documentVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrFormat, doc.Version)
	}
	return doc.Movies, nil
}

func decodeRecord(position int, payload []byte) (domain.Movie, error) {
	var m domain.Movie
	if err := json.Unmarshal(payload, &m); err != nil {
		return domain.Movie{}, fmt.Errorf("%w: record %d: %v", ErrFormat, position, err)
	}
	return m, nil
}
