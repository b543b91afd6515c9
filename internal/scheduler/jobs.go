package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/XavierBriggs/fortuna/services/handicapper/internal/archive"
	"github.com/XavierBriggs/fortuna/services/handicapper/internal/clv"
	"github.com/XavierBriggs/fortuna/services/handicapper/internal/metrics"
	"github.com/XavierBriggs/fortuna/services/handicapper/internal/staking"
	"github.com/XavierBriggs/fortuna/services/handicapper/pkg/contracts"
	"github.com/rs/zerolog"
)

const jobTimeout = 30 * time.Second

// ClosingCaptureJob snapshots the closing line of every bet whose kickoff is
// inside the cutoff
type ClosingCaptureJob struct {
	tracker *clv.Tracker
	lines   contracts.LineSource
	metrics *metrics.Metrics
	now     func() time.Time
	log     zerolog.Logger
}

// NewClosingCaptureJob creates the capture job; m may be nil
func NewClosingCaptureJob(tracker *clv.Tracker, lines contracts.LineSource, m *metrics.Metrics, log zerolog.Logger) *ClosingCaptureJob {
	return &ClosingCaptureJob{
		tracker: tracker,
		lines:   lines,
		metrics: m,
		now:     func() time.Time { return time.Now().UTC() },
		log:     log.With().Str("job", "closing_capture").Logger(),
	}
}

// Name implements Job
func (j *ClosingCaptureJob) Name() string {
	return "closing_capture"
}

// Run implements Job
func (j *ClosingCaptureJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	captured, err := j.tracker.CaptureDue(ctx, j.now(), j.lines)

	if len(captured) > 0 {
		j.log.Info().Int("captured", len(captured)).Msg("closing lines captured")
	}
	if j.metrics != nil {
		for _, r := range captured {
			j.metrics.RecordCLV(string(r.MarketType), *r.CLV)
		}
	}
	if err != nil {
		return fmt.Errorf("capture closing lines: %w", err)
	}
	return nil
}

// WeekRolloverJob starts a new exposure week at the current balance
type WeekRolloverJob struct {
	sizer *staking.Sizer
	now   func() time.Time
}

// NewWeekRolloverJob creates the rollover job
func NewWeekRolloverJob(sizer *staking.Sizer) *WeekRolloverJob {
	return &WeekRolloverJob{
		sizer: sizer,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Name implements Job
func (j *WeekRolloverJob) Name() string {
	return "week_rollover"
}

// Run implements Job
func (j *WeekRolloverJob) Run() error {
	return j.sizer.StartWeek(j.sizer.Bankroll().Current, j.now())
}

// CLVReportJob logs the CLV summary and publishes the rolling average
type CLVReportJob struct {
	tracker        *clv.Tracker
	window         int
	biasMinSamples int
	metrics        *metrics.Metrics
	log            zerolog.Logger
}

// NewCLVReportJob creates the report job; m may be nil
func NewCLVReportJob(tracker *clv.Tracker, window, biasMinSamples int, m *metrics.Metrics, log zerolog.Logger) *CLVReportJob {
	return &CLVReportJob{
		tracker:        tracker,
		window:         window,
		biasMinSamples: biasMinSamples,
		metrics:        m,
		log:            log.With().Str("job", "clv_report").Logger(),
	}
}

// Name implements Job
func (j *CLVReportJob) Name() string {
	return "clv_report"
}

// Run implements Job
func (j *CLVReportJob) Run() error {
	summary := j.tracker.Summary(j.window, j.biasMinSamples)
	if j.metrics != nil {
		j.metrics.RollingCLV.Set(summary.RollingCLV)
	}

	event := j.log.Info().
		Int("records", summary.Records).
		Int("closed", summary.Closed).
		Float64("rolling_clv", summary.RollingCLV).
		Float64("win_rate", summary.WinRate).
		Float64("roi", summary.ROI)
	for league, bias := range summary.SuggestedBias {
		event = event.Float64("bias_"+league, bias)
	}
	event.Msg("clv report")
	return nil
}

// CLVArchiveJob uploads a snapshot of the CLV ledger
type CLVArchiveJob struct {
	archiver *archive.Archiver
	now      func() time.Time
}

// NewCLVArchiveJob creates the archive job
func NewCLVArchiveJob(archiver *archive.Archiver) *CLVArchiveJob {
	return &CLVArchiveJob{
		archiver: archiver,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Name implements Job
func (j *CLVArchiveJob) Name() string {
	return "clv_archive"
}

// Run implements Job
func (j *CLVArchiveJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	_, err := j.archiver.Archive(ctx, j.now())
	return err
}
