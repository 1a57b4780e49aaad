package export

import (
	"fmt"
	"os"
	"strconv"

	"github.com/TheCacophonyProject/battery-analyzer/numeric"
	"github.com/TheCacophonyProject/battery-analyzer/pipeline"
	"github.com/apache/arrow/go/v18/arrow"
	"github.com/apache/arrow/go/v18/arrow/array"
	"github.com/apache/arrow/go/v18/arrow/ipc"
	"github.com/apache/arrow/go/v18/arrow/memory"
)

func nullableFloat(name string) arrow.Field {
	return arrow.Field{Name: name, Type: arrow.PrimitiveTypes.Float64, Nullable: true}
}

func schemaMetadata(md pipeline.Metadata) arrow.Metadata {
	return arrow.NewMetadata(
		[]string{"analysis_id", "vendor", "location", "capacity_mah", "initial_rate"},
		[]string{md.AnalysisID.String(), string(md.Vendor), md.Location,
			strconv.FormatFloat(md.Capacity, 'f', -1, 64), strconv.FormatFloat(md.InitialRate, 'f', -1, 64)},
	)
}

func appendValue(b array.Builder, v numeric.Value) {
	fb := b.(*array.Float64Builder)
	if v.Valid {
		fb.Append(v.V)
	} else {
		fb.AppendNull()
	}
}

// CycleSchema is the Arrow schema of a cycle result. Absent values are nulls.
func CycleSchema(md pipeline.Metadata) *arrow.Schema {
	meta := schemaMetadata(md)
	return arrow.NewSchema([]arrow.Field{
		{Name: "cycle", Type: arrow.PrimitiveTypes.Int64},
		nullableFloat("orig"),
		nullableFloat("dchg"),
		nullableFloat("chg"),
		nullableFloat("eff"),
		nullableFloat("eff2"),
		nullableFloat("dchg_energy"),
		nullableFloat("rest_vol"),
		nullableFloat("avg_vol"),
		nullableFloat("temp"),
		nullableFloat("dcir"),
	}, &meta)
}

func ProfileSchema(md pipeline.Metadata) *arrow.Schema {
	meta := schemaMetadata(md)
	return arrow.NewSchema([]arrow.Field{
		{Name: "time_min", Type: arrow.PrimitiveTypes.Float64},
		{Name: "soc", Type: arrow.PrimitiveTypes.Float64},
		{Name: "vol", Type: arrow.PrimitiveTypes.Float64},
		{Name: "crate", Type: arrow.PrimitiveTypes.Float64},
		nullableFloat("temp"),
		nullableFloat("dqdv"),
		nullableFloat("dvdq"),
	}, &meta)
}

// CycleRecord builds an Arrow record of the cycle metrics. The caller
// releases it.
func CycleRecord(mem memory.Allocator, r pipeline.CycleResult) arrow.Record {
	b := array.NewRecordBuilder(mem, CycleSchema(r.Metadata))
	defer b.Release()
	for _, m := range r.Metrics {
		b.Field(0).(*array.Int64Builder).Append(int64(m.Cycle))
		for i, v := range []numeric.Value{m.OriginalCycle, m.Discharge, m.Charge, m.Efficiency,
			m.RetentionEfficiency, m.DischargeEnergy, m.RestEndVoltage, m.AverageVoltage, m.Temperature, m.DCIR} {
			appendValue(b.Field(i+1), v)
		}
	}
	return b.NewRecord()
}

func ProfileRecord(mem memory.Allocator, r pipeline.ProfileResult) arrow.Record {
	b := array.NewRecordBuilder(mem, ProfileSchema(r.Metadata))
	defer b.Release()
	for _, p := range r.Points {
		for i, f := range []float64{p.TimeMin, p.SOC, p.Voltage, p.CRate} {
			b.Field(i).(*array.Float64Builder).Append(f)
		}
		appendValue(b.Field(4), p.Temperature)
		appendValue(b.Field(5), p.DQDV)
		appendValue(b.Field(6), p.DVDQ)
	}
	return b.NewRecord()
}

func WriteCycleArrow(path string, r pipeline.CycleResult) error {
	mem := memory.NewGoAllocator()
	rec := CycleRecord(mem, r)
	defer rec.Release()
	return writeArrowFile(path, mem, rec)
}

func WriteProfileArrow(path string, r pipeline.ProfileResult) error {
	mem := memory.NewGoAllocator()
	rec := ProfileRecord(mem, r)
	defer rec.Release()
	return writeArrowFile(path, mem, rec)
}

func writeArrowFile(path string, mem memory.Allocator, rec arrow.Record) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create arrow file: %w", err)
	}
	defer f.Close()

	w, err := ipc.NewFileWriter(f, ipc.WithSchema(rec.Schema()), ipc.WithAllocator(mem))
	if err != nil {
		return fmt.Errorf("failed to create arrow writer: %w", err)
	}
	if err := w.Write(rec); err != nil {
		w.Close()
		return fmt.Errorf("failed to write arrow record: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close arrow writer: %w", err)
	}
	return f.Close()
}
