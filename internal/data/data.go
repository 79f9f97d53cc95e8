// Package data loads the read-only datasets: recycling points, the knowledge
// base, facts and tips.
package data

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// RecyclingPoint is one row of the points dataset.
type RecyclingPoint struct {
	Name      string
	City      string
	Address   string
	Accepts   string
	WorkHours string
	Phone     string
	Website   string
}

// KnowledgeEntry is one curated question/answer pair.
type KnowledgeEntry struct {
	Question       string `json:"question"`
	Answer         string `json:"answer"`
	ContextKeyword string `json:"context_keyword,omitempty"`
}

// Dataset groups every static dataset.
type Dataset struct {
	Points    []RecyclingPoint
	Knowledge []KnowledgeEntry
	Facts     []string
	Tips      []string
}

// Paths locates the dataset files.
type Paths struct {
	Points    string
	Knowledge string
	Facts     string
	Tips      string
}

// Load reads every dataset. A missing or broken file leaves that dataset
// empty and is logged; the bot keeps working with what it has.
// The returned error joins every individual failure.
func Load(ctx context.Context, p Paths) (*Dataset, error) {
	var (
		ds   Dataset
		errs []error
		err  error
	)

	if ds.Points, err = LoadPoints(p.Points); err != nil {
		errs = append(errs, err)
	}
	if err = loadJSON(p.Knowledge, &ds.Knowledge); err != nil {
		errs = append(errs, fmt.Errorf("knowledge base: %w", err))
	}
	if err = loadJSON(p.Facts, &ds.Facts); err != nil {
		errs = append(errs, fmt.Errorf("facts: %w", err))
	}
	if err = loadJSON(p.Tips, &ds.Tips); err != nil {
		errs = append(errs, fmt.Errorf("tips: %w", err))
	}

	for _, e := range errs {
		slog.ErrorContext(ctx, "dataset not loaded", "error", e)
	}
	slog.InfoContext(ctx, "datasets loaded",
		"points", len(ds.Points),
		"knowledge", len(ds.Knowledge),
		"facts", len(ds.Facts),
		"tips", len(ds.Tips))

	return &ds, errors.Join(errs...)
}

// LoadPoints reads the points CSV. The first row is a header and columns are
// positional: name, city, address, accepts, work_hours, phone_number, website.
func LoadPoints(path string) ([]RecyclingPoint, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open points: %w", err)
	}
	defer func() { _ = f.Close() }()
	return ParsePoints(f)
}

// ParsePoints parses the points CSV from r. Missing trailing columns are empty.
func ParsePoints(r io.Reader) ([]RecyclingPoint, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	if _, err := cr.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("read points header: %w", err)
	}

	var points []RecyclingPoint
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read points line %d: %w", line, err)
		}
		col := func(i int) string {
			if i < len(rec) {
				return strings.TrimSpace(rec[i])
			}
			return ""
		}
		points = append(points, RecyclingPoint{
			Name:      col(0),
			City:      col(1),
			Address:   col(2),
			Accepts:   col(3),
			WorkHours: col(4),
			Phone:     col(5),
			Website:   col(6),
		})
	}
	return points, nil
}

func loadJSON(path string, v any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
