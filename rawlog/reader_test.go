package rawlog_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/TheCacophonyProject/battery-analyzer/rawlog"
	"github.com/TheCacophonyProject/battery-analyzer/rawlog/rawlogtest"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCycleSummaryVariants(t *testing.T) {
	rows := rawlogtest.Cycles(3, 1689)
	for _, tc := range []struct {
		header []string
		schema string
	}{
		{rawlogtest.SummaryHeaderV1, "toyo-summary-v1"},
		{rawlogtest.SummaryHeaderV2, "toyo-summary-v2"},
	} {
		dir := t.TempDir()
		require.NoError(t, rawlogtest.WriteSummary(dir, tc.header, rows))

		table, err := rawlog.LoadCycleSummary(context.Background(), rawlog.Dir(dir), nil)
		require.NoError(t, err)
		assert.Equal(t, tc.schema, table.Schema)
		assert.Zero(t, table.Skipped)
		require.Len(t, table.Rows, len(rows))

		first := table.Rows[0]
		assert.Equal(t, 1, first.CycleNumber)
		assert.Equal(t, rawlog.Charge, first.Condition)
		assert.InDelta(t, 1689*1.01, first.Capacity, 1e-9)
		assert.Equal(t, rawlogtest.FinishCurrent, first.FinishReason)
		assert.Equal(t, "CCCV", first.Mode)
		assert.Equal(t, 3.45, first.OpenCircuitVoltage)

		third := table.Rows[2]
		assert.Equal(t, rawlog.Discharge, third.Condition)
		assert.Equal(t, rawlogtest.FinishVoltage, third.FinishReason)
	}
}

func TestLoadCycleSummarySkipsMalformed(t *testing.T) {
	dir := t.TempDir()
	records := [][]string{
		{"1", "1", "1700", "3.4", "                 Cur", "CCCV", "4.2", "6700", "25", "3.9"},
		{"1", "x", "1700", "3.4", "                 Cur", "CCCV", "4.2", "6700", "25", "3.9"},
		{"1", "2"},
		{"1", "2", "1690", "4.1", "                 Vol", "CC", "4.1", "", "26", "3.7"},
	}
	require.NoError(t, rawlogtest.WriteLog(dir, rawlog.SummaryFile, nil, rawlogtest.SummaryHeaderV1, records))

	table, err := rawlog.LoadCycleSummary(context.Background(), rawlog.Dir(dir), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, table.Skipped)
	require.Len(t, table.Rows, 2)
	assert.True(t, math.IsNaN(table.Rows[1].Energy))
	assert.Equal(t, 1690.0, table.Rows[1].Capacity)
}

func TestLoadMissingAndUnknown(t *testing.T) {
	dir := t.TempDir()
	table, err := rawlog.LoadCycleSummary(context.Background(), rawlog.Dir(dir), nil)
	require.NoError(t, err)
	assert.Empty(t, table.Rows)

	detail, err := rawlog.LoadCycleDetail(context.Background(), rawlog.Dir(dir), 7, nil)
	require.NoError(t, err)
	assert.Empty(t, detail.Rows)

	require.NoError(t, rawlogtest.WriteLog(dir, rawlog.SummaryFile, nil, []string{"Cycle", "Volts"}, nil))
	_, err = rawlog.LoadCycleSummary(context.Background(), rawlog.Dir(dir), nil)
	assert.ErrorIs(t, err, rawlog.ErrUnknownSchema)
}

func TestLoadCycleDetailVariants(t *testing.T) {
	for _, tc := range []struct {
		header  []string
		schema  string
		hasTemp bool
	}{
		{rawlogtest.DetailHeaderV1, "toyo-detail-v1", true},
		{rawlogtest.DetailHeaderV1NoTemp, "toyo-detail-v1-notemp", false},
		{rawlogtest.DetailHeaderV2, "toyo-detail-v2", true},
	} {
		dir := t.TempDir()
		rows := rawlogtest.Charge(1000, 0.5, tc.hasTemp)
		require.NoError(t, rawlogtest.WriteDetail(dir, 12, tc.header, rows))

		table, err := rawlog.LoadCycleDetail(context.Background(), rawlog.Dir(dir), 12, nil)
		require.NoError(t, err)
		assert.Equal(t, tc.schema, table.Schema)
		require.Len(t, table.Rows, len(rows))
		assert.Equal(t, 60.0, table.Rows[1].Time)
		assert.Equal(t, 500.0, table.Rows[1].Current)
		assert.Equal(t, rawlog.Charge, table.Rows[1].Condition)
		if tc.hasTemp {
			assert.InDelta(t, 25.01, table.Rows[1].Temperature, 1e-9)
		} else {
			assert.True(t, math.IsNaN(table.Rows[1].Temperature))
		}
	}
}

func TestDetailFileName(t *testing.T) {
	assert.Equal(t, "000001", rawlog.DetailFile(1))
	assert.Equal(t, "000123", rawlog.DetailFile(123))
}

func TestParseVendor(t *testing.T) {
	v, err := rawlog.ParseVendor(" toyo")
	require.NoError(t, err)
	assert.Equal(t, rawlog.Toyo, v)
	_, err = rawlog.ParseVendor("maccor")
	assert.Error(t, err)
	assert.True(t, rawlog.Discharge.IsActive())
	assert.False(t, rawlog.Condition(3).IsActive())
}

type fakeS3 struct {
	objects map[string][]byte
}

func (f fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	b, ok := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(b))}, nil
}

func TestS3Source(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, rawlogtest.WriteSummary(dir, rawlogtest.SummaryHeaderV1, rawlogtest.Cycles(2, 500)))
	b, err := os.ReadFile(filepath.Join(dir, rawlog.SummaryFile))
	require.NoError(t, err)

	src := rawlog.S3{
		Client: fakeS3{objects: map[string][]byte{"logs/lot1/ch1/capacity.log": b}},
		Bucket: "logs",
		Prefix: "lot1/ch1",
	}
	assert.Equal(t, "s3://logs/lot1/ch1", src.Location())

	table, err := rawlog.LoadCycleSummary(context.Background(), src, nil)
	require.NoError(t, err)
	assert.Len(t, table.Rows, 8)

	_, err = src.Open(context.Background(), "000001")
	assert.True(t, errors.Is(err, os.ErrNotExist))

	detail, err := rawlog.LoadCycleDetail(context.Background(), src, 1, nil)
	require.NoError(t, err)
	assert.Empty(t, detail.Rows)
}

func TestParseS3Location(t *testing.T) {
	bucket, prefix, err := rawlog.ParseS3Location("s3://raw/2024/1689mAh/")
	require.NoError(t, err)
	assert.Equal(t, "raw", bucket)
	assert.Equal(t, "2024/1689mAh", prefix)

	_, _, err = rawlog.ParseS3Location("/data/run")
	assert.Error(t, err)

	src, err := rawlog.OpenSource(context.Background(), "/data/run", rawlog.S3Config{})
	require.NoError(t, err)
	assert.Equal(t, rawlog.Dir("/data/run"), src)
}
