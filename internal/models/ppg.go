package models

// SignalSource identifies where a pulse waveform came from.
type SignalSource string

const (
	SourceWebcam               SignalSource = "webcam"
	SourcePulseSensorSimulated SignalSource = "pulse_sensor_simulated"
)

// Metric is a derived value that may be unavailable, e.g. HRV with too few beats.
type Metric struct {
	Value float64
	Valid bool
}

// Computed wraps a value produced by the pipeline.
func Computed(v float64) Metric {
	return Metric{Value: v, Valid: true}
}

// Unavailable marks a metric the pipeline could not derive.
func Unavailable() Metric {
	return Metric{}
}

// OrZero returns the value, or 0.0 when the metric is unavailable.
func (m Metric) OrZero() float64 {
	if !m.Valid {
		return 0.0
	}
	return m.Value
}

// ROI is the normalized face region the client sampled. It is echoed, not used.
type ROI struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// IntervalMetrics holds statistics over the beat-to-beat interval series.
type IntervalMetrics struct {
	MeanNN   Metric
	MedianNN Metric
	MinNN    Metric
	MaxNN    Metric
	PNN50    Metric
	RateMean Metric
}

// SignalMetrics is the full result of feature extraction for one source.
type SignalMetrics struct {
	Source        SignalSource
	Signal        []float64
	Peaks         []int
	Quality       []float64
	HeartRate     Metric
	RMSSD         Metric
	SDNN          Metric
	MeanQuality   Metric
	IntervalStats IntervalMetrics
}

// AnalysisRequest is the body of POST /analyze_ppg.
type AnalysisRequest struct {
	Duration     *int      `json:"duration"`
	SamplingRate *int      `json:"sampling_rate"`
	ROI          *ROI      `json:"roi"`
	Signal       []float64 `json:"signal"`
}

// AnalysisResult pairs the captured and the simulated reference metrics.
type AnalysisResult struct {
	Webcam      SignalMetrics
	PulseSensor SignalMetrics
	ROI         ROI
	Warnings    []string
}

type HRVResponse struct {
	RMSSD float64 `json:"HRV_RMSSD"`
	SDNN  float64 `json:"HRV_SDNN"`
}

type IntervalRelatedResponse struct {
	MeanNN   float64 `json:"HRV_MeanNN"`
	MedianNN float64 `json:"HRV_MedianNN"`
	MinNN    float64 `json:"HRV_MinNN"`
	MaxNN    float64 `json:"HRV_MaxNN"`
	PNN50    float64 `json:"HRV_pNN50"`
	RateMean float64 `json:"PPG_Rate_Mean"`
}

type QualityResponse struct {
	Quality float64 `json:"quality"`
}

// SignalMetricsResponse is the wire form of SignalMetrics. Unavailable metrics become 0.0 here.
type SignalMetricsResponse struct {
	Signal          []float64               `json:"signal"`
	HeartRate       float64                 `json:"heart_rate"`
	HRV             HRVResponse             `json:"hrv"`
	IntervalRelated IntervalRelatedResponse `json:"interval_related"`
	QualityMetrics  QualityResponse         `json:"quality_metrics"`
	Source          SignalSource            `json:"source"`
}

// AnalysisResponse is the 200 body of POST /analyze_ppg.
type AnalysisResponse struct {
	Webcam      SignalMetricsResponse `json:"webcam"`
	PulseSensor SignalMetricsResponse `json:"pulse_sensor"`
	ROI         ROI                   `json:"roi"`
	Warnings    []string              `json:"warnings"`
}

// ToResponse applies the zero-default policy for missing metrics.
func (m SignalMetrics) ToResponse() SignalMetricsResponse {
	signal := m.Signal
	if signal == nil {
		signal = []float64{}
	}
	return SignalMetricsResponse{
		Signal:    signal,
		HeartRate: m.HeartRate.OrZero(),
		HRV: HRVResponse{
			RMSSD: m.RMSSD.OrZero(),
			SDNN:  m.SDNN.OrZero(),
		},
		IntervalRelated: IntervalRelatedResponse{
			MeanNN:   m.IntervalStats.MeanNN.OrZero(),
			MedianNN: m.IntervalStats.MedianNN.OrZero(),
			MinNN:    m.IntervalStats.MinNN.OrZero(),
			MaxNN:    m.IntervalStats.MaxNN.OrZero(),
			PNN50:    m.IntervalStats.PNN50.OrZero(),
			RateMean: m.IntervalStats.RateMean.OrZero(),
		},
		QualityMetrics: QualityResponse{Quality: m.MeanQuality.OrZero()},
		Source:         m.Source,
	}
}

// ToResponse converts the analysis result to its wire form.
func (r *AnalysisResult) ToResponse() AnalysisResponse {
	warnings := r.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	return AnalysisResponse{
		Webcam:      r.Webcam.ToResponse(),
		PulseSensor: r.PulseSensor.ToResponse(),
		ROI:         r.ROI,
		Warnings:    warnings,
	}
}

// PPGResultEvent is the summary published to the result stream after an analysis.
type PPGResultEvent struct {
	RequestID           string  `json:"request_id"`
	WebcamHeartRate     float64 `json:"webcam_heart_rate"`
	WebcamQuality       float64 `json:"webcam_quality"`
	ReferenceHeartRate  float64 `json:"reference_heart_rate"`
	SamplingRate        int     `json:"sampling_rate"`
	Samples             int     `json:"samples"`
	Warnings            int     `json:"warnings"`
	TimestampUnixMillis int64   `json:"timestamp"`
}
