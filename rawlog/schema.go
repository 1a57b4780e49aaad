package rawlog

import (
	"errors"
	"fmt"
	"strings"
)

var ErrUnknownSchema = errors.New("unknown log schema")

type field int

const (
	fCycle field = iota
	fCondition
	fCapacity
	fOCV
	fFinish
	fMode
	fPeakVolt
	fEnergy
	fPeakTemp
	fAvgVolt
	fTime
	fVoltage
	fCurrent
	fTemp
)

// schema maps the fields of a firmware variant to its header names.
// Required fields must parse for a line to be kept.
type schema struct {
	id       string
	columns  map[field]string
	required []field
}

var summarySchemas = []schema{
	{
		id: "toyo-summary-v1",
		columns: map[field]string{
			fCycle:     "TotlCycle",
			fCondition: "Condition",
			fCapacity:  "Cap[mAh]",
			fOCV:       "Ocv",
			fFinish:    "Finish",
			fMode:      "Mode",
			fPeakVolt:  "PeakVolt[V]",
			fEnergy:    "Pow[mWh]",
			fPeakTemp:  "PeakTemp[Deg]",
			fAvgVolt:   "AveVolt[V]",
		},
		required: []field{fCycle, fCondition, fCapacity},
	},
	{
		id: "toyo-summary-v2",
		columns: map[field]string{
			fCycle:     "Total Cycle",
			fCondition: "Condition",
			fCapacity:  "Capacity[mAh]",
			fOCV:       "OCV[V]",
			fFinish:    "End Factor",
			fMode:      "Mode",
			fPeakVolt:  "Peak Volt.[V]",
			fEnergy:    "Power[mWh]",
			fPeakTemp:  "Peak Temp.[deg]",
			fAvgVolt:   "Ave. Volt.[V]",
		},
		required: []field{fCycle, fCondition, fCapacity},
	},
}

var detailSchemas = []schema{
	{
		id: "toyo-detail-v1",
		columns: map[field]string{
			fTime:      "PassTime[Sec]",
			fVoltage:   "Voltage[V]",
			fCurrent:   "Current[mA]",
			fCondition: "Condition",
			fTemp:      "Temp1[Deg]",
		},
		required: []field{fTime, fVoltage, fCurrent, fCondition},
	},
	{
		id: "toyo-detail-v1-notemp",
		columns: map[field]string{
			fTime:      "PassTime[Sec]",
			fVoltage:   "Voltage[V]",
			fCurrent:   "Current[mA]",
			fCondition: "Condition",
		},
		required: []field{fTime, fVoltage, fCurrent, fCondition},
	},
	{
		id: "toyo-detail-v2",
		columns: map[field]string{
			fTime:      "Passed Time[Sec]",
			fVoltage:   "Voltage[V]",
			fCurrent:   "Current[mA]",
			fCondition: "Condition",
			fTemp:      "Temp1[deg]",
		},
		required: []field{fTime, fVoltage, fCurrent, fCondition},
	},
}

// binding is a schema resolved against a concrete header.
type binding struct {
	schema
	index map[field]int
	width int
}

func (b binding) has(f field) bool {
	_, ok := b.index[f]
	return ok
}

// resolve picks the first variant whose columns all appear in header.
func resolve(variants []schema, header []string, file string) (binding, error) {
	pos := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if _, dup := pos[h]; !dup {
			pos[h] = i
		}
	}
	for _, s := range variants {
		b := binding{schema: s, index: make(map[field]int, len(s.columns))}
		ok := true
		for f, name := range s.columns {
			i, found := pos[name]
			if !found {
				ok = false
				break
			}
			b.index[f] = i
			b.width = max(b.width, i+1)
		}
		if ok {
			return b, nil
		}
	}
	return binding{}, fmt.Errorf("%w in %s: %s", ErrUnknownSchema, file, strings.Join(header, ","))
}
