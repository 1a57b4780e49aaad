// Package capacity works out the reference capacity used to normalize a run.
package capacity

import (
	"context"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/TheCacophonyProject/battery-analyzer/internal/logutil"
	"github.com/TheCacophonyProject/battery-analyzer/rawlog"
	"github.com/TheCacophonyProject/go-utils/logging"
)

var (
	nameSeparators = strings.NewReplacer(".", " ", "_", " ", "@", " ", "$", " ", "(", " ", ")", " ")
	nameToken      = regexp.MustCompile(`(\d+([-.]\d+)?)mAh`)
)

// FromName extracts a capacity token such as "1689mAh" or "4-5mAh" (4.5).
// Separator characters are blanked first, so "4.5mAh" reads as 5.
func FromName(name string) (float64, bool) {
	m := nameToken.FindStringSubmatch(nameSeparators.Replace(name))
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.Replace(m[1], "-", ".", 1), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// FromCurrent estimates capacity from the peak current of the first
// cycle, which runs at initialRate C.
func FromCurrent(rows []rawlog.DetailRow, initialRate float64) float64 {
	if len(rows) == 0 || initialRate <= 0 {
		return 0
	}
	peak := math.Inf(-1)
	for _, r := range rows {
		peak = max(peak, r.Current)
	}
	return math.RoundToEven(peak / initialRate)
}

// Estimate returns the reference capacity in mAh. A configured value
// wins, then a token in runID, then the current of the first detail log.
// Zero means no capacity could be established.
func Estimate(ctx context.Context, src rawlog.Source, runID string, configured, initialRate float64, log *logging.Logger) float64 {
	log = logutil.OrDiscard(log)
	if configured != 0 {
		return configured
	}
	if v, ok := FromName(runID); ok {
		log.Debugf("capacity %v mAh from name %s", v, runID)
		return v
	}
	table, err := rawlog.LoadCycleDetail(ctx, src, 1, log)
	if err != nil {
		log.Warnf("failed to estimate capacity of %s: %v", src.Location(), err)
		return 0
	}
	v := FromCurrent(table.Rows, initialRate)
	log.Debugf("capacity %v mAh from first cycle current", v)
	return v
}
