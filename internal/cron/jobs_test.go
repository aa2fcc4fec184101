package cron

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	dto "github.com/prometheus/client_model/go"
	"google.golang.org/protobuf/proto"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeGatherer struct {
	families []*dto.MetricFamily
	err      error
}

func (f *fakeGatherer) Gather() ([]*dto.MetricFamily, error) {
	return f.families, f.err
}

func counterFamily(name string, value float64) *dto.MetricFamily {
	return &dto.MetricFamily{
		Name: proto.String(name),
		Type: dto.MetricType_COUNTER.Enum(),
		Metric: []*dto.Metric{
			{Counter: &dto.Counter{Value: proto.Float64(value)}},
		},
	}
}

func TestMetricsReportJob_Run(t *testing.T) {
	t.Parallel()

	job := &MetricsReportJob{
		Metrics: &fakeGatherer{families: []*dto.MetricFamily{
			counterFamily("messages_total", 42),
		}},
		Logger: discardLogger(),
	}

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestMetricsReportJob_GatherError(t *testing.T) {
	t.Parallel()

	wantErr := errors.New("gather failed")
	job := &MetricsReportJob{
		Metrics: &fakeGatherer{err: wantErr},
		Logger:  discardLogger(),
	}

	if err := job.Run(context.Background()); !errors.Is(err, wantErr) {
		t.Errorf("Run error = %v, want %v", err, wantErr)
	}
}

func TestMetricsReportJob_CancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	job := &MetricsReportJob{
		Metrics: &fakeGatherer{},
		Logger:  discardLogger(),
	}

	if err := job.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Run error = %v, want context.Canceled", err)
	}
}

func TestMetricsReportJob_Schedule(t *testing.T) {
	t.Parallel()

	job := &MetricsReportJob{}
	if got := job.Schedule(); got != "0 * * * *" {
		t.Errorf("default Schedule() = %q", got)
	}
	if got := job.Name(); got != "metrics_report" {
		t.Errorf("Name() = %q", got)
	}
}
