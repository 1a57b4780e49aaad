package detect

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// PathEntry is one line of a path list file.
type PathEntry struct {
	Path string
	Name string
}

// ParsePathFile reads a tab separated list with a cyclepath column and an
// optional cyclename column.
func ParsePathFile(r io.Reader) ([]PathEntry, error) {
	cr := csv.NewReader(r)
	cr.Comma = '\t'
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, errors.New("path file is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read path file header: %w", err)
	}
	pathCol, nameCol := -1, -1
	for i, h := range header {
		switch strings.TrimSpace(h) {
		case "cyclepath":
			pathCol = i
		case "cyclename":
			nameCol = i
		}
	}
	if pathCol < 0 {
		return nil, errors.New("path file must contain a cyclepath column")
	}

	var entries []PathEntry
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read path file: %w", err)
		}
		if pathCol >= len(rec) || strings.TrimSpace(rec[pathCol]) == "" {
			continue
		}
		e := PathEntry{Path: strings.TrimSpace(rec[pathCol])}
		if nameCol >= 0 && nameCol < len(rec) {
			e.Name = strings.TrimSpace(rec[nameCol])
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// ParseCycleList expands a selection such as "1-5 10 15".
func ParseCycleList(s string) ([]int, error) {
	var out []int
	for _, part := range strings.Fields(s) {
		lo, hi, isRange := strings.Cut(part, "-")
		start, err := strconv.Atoi(lo)
		if err != nil {
			return nil, fmt.Errorf("bad cycle %q", part)
		}
		if !isRange {
			out = append(out, start)
			continue
		}
		end, err := strconv.Atoi(hi)
		if err != nil {
			return nil, fmt.Errorf("bad cycle range %q", part)
		}
		for c := start; c <= end; c++ {
			out = append(out, c)
		}
	}
	return out, nil
}
