package rawlog

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"strconv"
	"strings"

	"github.com/TheCacophonyProject/battery-analyzer/internal/logutil"
	"github.com/TheCacophonyProject/go-utils/logging"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/transform"
)

const (
	SummaryFile    = "capacity.log"
	detailPreamble = 3
	maxLoggedSkips = 5
)

// DetailFile is the name of the detail log for a cycle.
func DetailFile(cycle int) string {
	return fmt.Sprintf("%06d", cycle)
}

// LoadCycleSummary reads capacity.log. A missing file gives an empty table.
func LoadCycleSummary(ctx context.Context, src Source, log *logging.Logger) (Table[Row], error) {
	return load(ctx, src, SummaryFile, 0, summarySchemas, parseSummary, log)
}

// LoadCycleDetail reads the detail log of one cycle. A missing file gives
// an empty table.
func LoadCycleDetail(ctx context.Context, src Source, cycle int, log *logging.Logger) (Table[DetailRow], error) {
	return load(ctx, src, DetailFile(cycle), detailPreamble, detailSchemas, parseDetail, log)
}

func load[T any](
	ctx context.Context,
	src Source,
	name string,
	preamble int,
	variants []schema,
	parse func(binding, []string) (T, error),
	log *logging.Logger,
) (Table[T], error) {
	log = logutil.OrDiscard(log)
	rc, err := src.Open(ctx, name)
	if errors.Is(err, fs.ErrNotExist) {
		log.Debugf("%s not found in %s", name, src.Location())
		return Table[T]{}, nil
	}
	if err != nil {
		return Table[T]{}, err
	}
	defer rc.Close()

	br := bufio.NewReader(transform.NewReader(rc, korean.EUCKR.NewDecoder()))
	for i := 0; i < preamble; i++ {
		if _, err := br.ReadString('\n'); err != nil {
			if err == io.EOF {
				return Table[T]{}, nil
			}
			return Table[T]{}, fmt.Errorf("failed to read %s: %w", name, err)
		}
	}

	r := csv.NewReader(br)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.ReuseRecord = true

	header, err := r.Read()
	if err == io.EOF {
		return Table[T]{}, nil
	}
	if err != nil {
		return Table[T]{}, fmt.Errorf("failed to read header of %s: %w", name, err)
	}
	b, err := resolve(variants, header, name)
	if err != nil {
		return Table[T]{}, err
	}

	table := Table[T]{Schema: b.id}
	for line := 2 + preamble; ; line++ {
		if line%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return table, err
			}
		}
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err == nil && len(record) < b.width {
			err = fmt.Errorf("expected %d fields, got %d", b.width, len(record))
		}
		var row T
		if err == nil {
			row, err = parse(b, record)
		}
		if err != nil {
			table.Skipped++
			if table.Skipped <= maxLoggedSkips {
				log.Debugf("skipping %s line %d: %v", name, line, err)
			}
			continue
		}
		table.Rows = append(table.Rows, row)
	}
	if table.Skipped > 0 {
		log.Infof("skipped %d malformed lines in %s", table.Skipped, name)
	}
	return table, nil
}

func parseSummary(b binding, rec []string) (Row, error) {
	cycle, err := requiredInt(b, rec, fCycle)
	if err != nil {
		return Row{}, err
	}
	cond, err := requiredInt(b, rec, fCondition)
	if err != nil {
		return Row{}, err
	}
	capacity, err := requiredFloat(b, rec, fCapacity)
	if err != nil {
		return Row{}, err
	}
	return Row{
		CycleNumber:        cycle,
		Condition:          Condition(cond),
		Capacity:           capacity,
		Energy:             optionalFloat(b, rec, fEnergy),
		OpenCircuitVoltage: optionalFloat(b, rec, fOCV),
		AverageVoltage:     optionalFloat(b, rec, fAvgVolt),
		PeakVoltage:        optionalFloat(b, rec, fPeakVolt),
		PeakTemperature:    optionalFloat(b, rec, fPeakTemp),
		// Sentinels such as "                 Vol" keep their padding.
		FinishReason: rec[b.index[fFinish]],
		Mode:         strings.TrimSpace(rec[b.index[fMode]]),
	}, nil
}

func parseDetail(b binding, rec []string) (DetailRow, error) {
	t, err := requiredFloat(b, rec, fTime)
	if err != nil {
		return DetailRow{}, err
	}
	v, err := requiredFloat(b, rec, fVoltage)
	if err != nil {
		return DetailRow{}, err
	}
	i, err := requiredFloat(b, rec, fCurrent)
	if err != nil {
		return DetailRow{}, err
	}
	cond, err := requiredInt(b, rec, fCondition)
	if err != nil {
		return DetailRow{}, err
	}
	return DetailRow{
		Time:        t,
		Voltage:     v,
		Current:     i,
		Condition:   Condition(cond),
		Temperature: optionalFloat(b, rec, fTemp),
	}, nil
}

func requiredFloat(b binding, rec []string, f field) (float64, error) {
	s := strings.TrimSpace(rec[b.index[f]])
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("bad %s %q", b.columns[f], s)
	}
	return v, nil
}

func requiredInt(b binding, rec []string, f field) (int, error) {
	v, err := requiredFloat(b, rec, f)
	if err != nil {
		return 0, err
	}
	if v != math.Trunc(v) {
		return 0, fmt.Errorf("bad %s %v", b.columns[f], v)
	}
	return int(v), nil
}

func optionalFloat(b binding, rec []string, f field) float64 {
	if !b.has(f) {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(rec[b.index[f]]), 64)
	if err != nil {
		return math.NaN()
	}
	return v
}
