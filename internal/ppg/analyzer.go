package ppg

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/irfndi/tanya-ai-go/internal/models"
	"github.com/irfndi/tanya-ai-go/internal/telemetry"
	"github.com/irfndi/tanya-ai-go/internal/utils"
)

// InsufficientWebcamMessage is returned verbatim for short recordings.
const InsufficientWebcamMessage = "Insufficient webcam signal data. Record at least 15 seconds."

// ResultPublisher receives a summary of each successful analysis.
type ResultPublisher interface {
	PublishResult(ctx context.Context, event models.PPGResultEvent) error
}

type signalCleaner interface {
	Preprocess(raw SignalBuffer) (CleanedSignal, error)
}

// Analyzer runs the captured trace and a simulated reference through the
// same pipeline and combines the results.
type Analyzer struct {
	opts         Options
	preprocessor signalCleaner
	extractor    *FeatureExtractor
	simulator    *ReferenceSimulator
	publisher    ResultPublisher
	tracer       *telemetry.BusinessTracer
	logger       *logrus.Logger
}

// NewAnalyzer wires the pipeline stages. publisher may be nil.
func NewAnalyzer(opts Options, simulator *ReferenceSimulator, publisher ResultPublisher, logger *logrus.Logger) *Analyzer {
	if simulator == nil {
		simulator = NewReferenceSimulator(opts, nil)
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Analyzer{
		opts:         opts,
		preprocessor: NewPreprocessor(opts),
		extractor:    NewFeatureExtractor(opts),
		simulator:    simulator,
		publisher:    publisher,
		tracer:       telemetry.NewBusinessTracer(),
		logger:       logger,
	}
}

type pathResult struct {
	metrics    models.SignalMetrics
	preErr     error
	extractErr error
	simErr     error
}

// Analyze returns *AnalysisError for every failure. Status mapping:
// undersized or malformed input 400, captured preprocessing 500, captured
// extraction 400, anything on the simulated path 500.
func (a *Analyzer) Analyze(ctx context.Context, req models.AnalysisRequest) (*models.AnalysisResult, error) {
	start := time.Now()
	duration, rate, roi, err := a.resolve(req)
	if err != nil {
		return nil, badRequest(err.Error(), err)
	}

	ctx, span := a.tracer.TracePPGAnalysis(ctx, len(req.Signal), rate)
	defer span.End()

	captured := SignalBuffer{Samples: req.Signal, SamplingRate: rate, Source: models.SourceWebcam}
	if err := captured.Validate(a.opts.MinDurationSeconds); err != nil {
		a.tracer.RecordFailure(span, err)
		return nil, badRequest(InsufficientWebcamMessage, err)
	}

	var (
		wg             sync.WaitGroup
		webcam, sensor pathResult
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		webcam = a.runPath(captured)
	}()
	go func() {
		defer wg.Done()
		reference, err := a.simulator.Simulate(rate, duration)
		if err != nil {
			sensor = pathResult{simErr: err}
			return
		}
		sensor = a.runPath(reference)
	}()
	wg.Wait()

	if aerr := mapPathErrors(webcam, sensor); aerr != nil {
		a.tracer.RecordFailure(span, aerr)
		a.logger.WithFields(logrus.Fields{
			"status":  aerr.Status,
			"samples": len(req.Signal),
		}).WithError(aerr.Err).Warn("PPG analysis failed")
		return nil, aerr
	}

	result := &models.AnalysisResult{
		Webcam:      webcam.metrics,
		PulseSensor: sensor.metrics,
		ROI:         roi,
		Warnings:    append(missingMetricWarnings(webcam.metrics), missingMetricWarnings(sensor.metrics)...),
	}

	a.tracer.RecordPPGResult(span, telemetry.PPGAnalysisSummary{
		WebcamHeartRate:    result.Webcam.HeartRate.OrZero(),
		ReferenceHeartRate: result.PulseSensor.HeartRate.OrZero(),
		WebcamQuality:      result.Webcam.MeanQuality.OrZero(),
		Warnings:           len(result.Warnings),
		Duration:           time.Since(start),
	})
	a.logger.WithFields(logrus.Fields{
		"samples":              len(req.Signal),
		"sampling_rate":        rate,
		"webcam_heart_rate":    result.Webcam.HeartRate.OrZero(),
		"reference_heart_rate": result.PulseSensor.HeartRate.OrZero(),
		"warnings":             len(result.Warnings),
		"duration_ms":          time.Since(start).Milliseconds(),
	}).Info("PPG analysis completed")

	a.publish(ctx, result, rate, len(req.Signal))
	return result, nil
}

func (a *Analyzer) runPath(buf SignalBuffer) pathResult {
	clean, err := a.preprocessor.Preprocess(buf)
	if err != nil {
		return pathResult{preErr: err}
	}
	metrics, err := a.extractor.Extract(clean)
	if err != nil {
		return pathResult{extractErr: asProcessingError(buf.Source, err)}
	}
	return pathResult{metrics: metrics}
}

// mapPathErrors applies the failures in the order the stages would run
// sequentially, so the reported error does not depend on goroutine timing.
func mapPathErrors(webcam, sensor pathResult) *AnalysisError {
	switch {
	case webcam.preErr != nil:
		return internalError(webcam.preErr)
	case webcam.extractErr != nil:
		return badRequest(webcam.extractErr.Error(), webcam.extractErr)
	case sensor.simErr != nil:
		return internalError(sensor.simErr)
	case sensor.preErr != nil:
		return internalError(sensor.preErr)
	case sensor.extractErr != nil:
		return internalError(sensor.extractErr)
	}
	return nil
}

func asProcessingError(source models.SignalSource, err error) error {
	var perr *ProcessingError
	if errors.As(err, &perr) {
		return perr
	}
	return &ProcessingError{Source: source, Message: err.Error()}
}

// resolve fills request defaults and rejects malformed parameters.
func (a *Analyzer) resolve(req models.AnalysisRequest) (duration, rate int, roi models.ROI, err error) {
	duration, rate, roi = a.opts.DefaultDurationSeconds, a.opts.DefaultSamplingRate, a.opts.DefaultROI
	if req.Duration != nil {
		duration = *req.Duration
	}
	if req.SamplingRate != nil {
		rate = *req.SamplingRate
	}
	if req.ROI != nil {
		roi = *req.ROI
	}

	minRate := 2 * a.opts.HighCutHz
	switch {
	case float64(rate) <= minRate:
		return 0, 0, roi, utils.NewValidationErrorf("sampling_rate must be greater than %g Hz", minRate)
	case a.opts.MaxSamplingRate > 0 && rate > a.opts.MaxSamplingRate:
		return 0, 0, roi, utils.NewValidationErrorf("sampling_rate must not exceed %d Hz", a.opts.MaxSamplingRate)
	case duration < a.opts.MinDurationSeconds:
		return 0, 0, roi, utils.NewValidationErrorf("duration must be at least %d seconds", a.opts.MinDurationSeconds)
	case a.opts.MaxDurationSeconds > 0 && duration > a.opts.MaxDurationSeconds:
		return 0, 0, roi, utils.NewValidationErrorf("duration must not exceed %d seconds", a.opts.MaxDurationSeconds)
	}
	fields := []struct {
		name  string
		value float64
	}{{"roi.x", roi.X}, {"roi.y", roi.Y}, {"roi.width", roi.Width}, {"roi.height", roi.Height}}
	for _, f := range fields {
		if f.value < 0 || f.value > 1 {
			return 0, 0, roi, utils.NewValidationErrorf("%s must be within [0, 1]", f.name)
		}
	}
	return duration, rate, roi, nil
}

func missingMetricWarnings(m models.SignalMetrics) []string {
	var warnings []string
	check := func(name string, metric models.Metric) {
		if !metric.Valid {
			warnings = append(warnings, fmt.Sprintf("%s: %s unavailable, reported as 0", m.Source, name))
		}
	}
	check("heart_rate", m.HeartRate)
	check("HRV_RMSSD", m.RMSSD)
	check("HRV_SDNN", m.SDNN)
	check("quality", m.MeanQuality)
	return warnings
}

func (a *Analyzer) publish(ctx context.Context, result *models.AnalysisResult, rate, samples int) {
	if a.publisher == nil {
		return
	}
	event := models.PPGResultEvent{
		RequestID:           uuid.NewString(),
		WebcamHeartRate:     result.Webcam.HeartRate.OrZero(),
		WebcamQuality:       result.Webcam.MeanQuality.OrZero(),
		ReferenceHeartRate:  result.PulseSensor.HeartRate.OrZero(),
		SamplingRate:        rate,
		Samples:             samples,
		Warnings:            len(result.Warnings),
		TimestampUnixMillis: time.Now().UnixMilli(),
	}
	if err := a.publisher.PublishResult(ctx, event); err != nil {
		a.logger.WithError(err).Warn("Failed to publish PPG result")
	}
}
