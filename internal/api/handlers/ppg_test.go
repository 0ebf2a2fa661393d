package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/irfndi/tanya-ai-go/internal/models"
	"github.com/irfndi/tanya-ai-go/internal/ppg"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

type MockAnalyzer struct {
	mock.Mock
}

func (m *MockAnalyzer) Analyze(ctx context.Context, req models.AnalysisRequest) (*models.AnalysisResult, error) {
	args := m.Called(ctx, req)
	if r := args.Get(0); r != nil {
		return r.(*models.AnalysisResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func ppgRouter(analyzer PPGAnalyzer) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/analyze_ppg", NewPPGHandler(analyzer, quietLogger()).Analyze)
	return r
}

func postJSON(r http.Handler, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestPPGHandler_Analyze(t *testing.T) {
	result := &models.AnalysisResult{
		Webcam: models.SignalMetrics{
			Source:      models.SourceWebcam,
			Signal:      []float64{0.1, -0.2},
			HeartRate:   models.Computed(72),
			RMSSD:       models.Computed(35),
			SDNN:        models.Unavailable(),
			MeanQuality: models.Computed(0.9),
		},
		PulseSensor: models.SignalMetrics{Source: models.SourcePulseSensorSimulated, HeartRate: models.Computed(70)},
		Warnings:    []string{"webcam: HRV_SDNN unavailable, reported as 0"},
	}

	tests := []struct {
		name       string
		body       string
		result     *models.AnalysisResult
		err        error
		wantStatus int
		wantError  string
	}{
		{
			name:       "success",
			body:       `{"signal":[1,2,3],"sampling_rate":30}`,
			result:     result,
			wantStatus: http.StatusOK,
		},
		{
			name:       "insufficient signal",
			body:       `{"signal":[1,2,3]}`,
			err:        &ppg.AnalysisError{Status: http.StatusBadRequest, Message: ppg.InsufficientWebcamMessage},
			wantStatus: http.StatusBadRequest,
			wantError:  ppg.InsufficientWebcamMessage,
		},
		{
			name:       "simulated path failure",
			body:       `{"signal":[1,2,3]}`,
			err:        &ppg.AnalysisError{Status: http.StatusInternalServerError, Message: "simulation failed: bad rate"},
			wantStatus: http.StatusInternalServerError,
			wantError:  "simulation failed: bad rate",
		},
		{
			name:       "unexpected error",
			body:       `{"signal":[1,2,3]}`,
			err:        errors.New("boom"),
			wantStatus: http.StatusInternalServerError,
			wantError:  "Signal analysis failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			analyzer := &MockAnalyzer{}
			var ret interface{}
			if tt.result != nil {
				ret = tt.result
			}
			analyzer.On("Analyze", mock.Anything, mock.AnythingOfType("models.AnalysisRequest")).Return(ret, tt.err)

			w := postJSON(ppgRouter(analyzer), "/analyze_ppg", tt.body)
			assert.Equal(t, tt.wantStatus, w.Code)

			var body map[string]interface{}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			if tt.wantError != "" {
				assert.Equal(t, map[string]interface{}{"error": tt.wantError}, body)
			} else {
				webcam := body["webcam"].(map[string]interface{})
				assert.Equal(t, 72.0, webcam["heart_rate"])
				assert.Equal(t, "webcam", webcam["source"])
				hrv := webcam["hrv"].(map[string]interface{})
				assert.Equal(t, 35.0, hrv["HRV_RMSSD"])
				assert.Equal(t, 0.0, hrv["HRV_SDNN"])
				assert.Equal(t, 0.9, webcam["quality_metrics"].(map[string]interface{})["quality"])
				assert.Len(t, body["warnings"], 1)
			}
			analyzer.AssertExpectations(t)
		})
	}
}

func TestPPGHandler_InvalidJSON(t *testing.T) {
	analyzer := &MockAnalyzer{}

	w := postJSON(ppgRouter(analyzer), "/analyze_ppg", `{"signal": "nope"`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid request body")
	analyzer.AssertNotCalled(t, "Analyze", mock.Anything, mock.Anything)
}

func TestPPGHandler_RealPipeline(t *testing.T) {
	opts := ppg.DefaultOptions()
	analyzer := ppg.NewAnalyzer(opts, ppg.NewSeededSimulator(opts, 3), nil, quietLogger())
	router := ppgRouter(analyzer)

	t.Run("short recording is rejected", func(t *testing.T) {
		signal, _ := json.Marshal(pulse(200))
		w := postJSON(router, "/analyze_ppg", `{"sampling_rate":30,"signal":`+string(signal)+`}`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.JSONEq(t, `{"error":"Insufficient webcam signal data. Record at least 15 seconds."}`, w.Body.String())
	})

	t.Run("one sample under fifteen seconds is rejected", func(t *testing.T) {
		signal, _ := json.Marshal(pulse(449))
		w := postJSON(router, "/analyze_ppg", `{"duration":15,"sampling_rate":30,"signal":`+string(signal)+`}`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "Record at least 15 seconds")
	})

	t.Run("exactly fifteen seconds", func(t *testing.T) {
		signal, _ := json.Marshal(pulse(450))
		w := postJSON(router, "/analyze_ppg", `{"duration":15,"sampling_rate":30,"signal":`+string(signal)+`}`)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var resp models.AnalysisResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Greater(t, resp.Webcam.HeartRate, 0.0)
		assert.Greater(t, resp.PulseSensor.HeartRate, 0.0)
		assert.Len(t, resp.Webcam.Signal, 450)
	})

	t.Run("twenty second recording", func(t *testing.T) {
		signal, _ := json.Marshal(pulse(600))
		w := postJSON(router, "/analyze_ppg", `{"duration":20,"sampling_rate":30,"signal":`+string(signal)+`}`)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var resp models.AnalysisResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.InDelta(t, 72, resp.Webcam.HeartRate, 6)
		assert.Greater(t, resp.PulseSensor.HeartRate, 0.0)
		assert.Len(t, resp.Webcam.Signal, 600)
		assert.Equal(t, models.SourcePulseSensorSimulated, resp.PulseSensor.Source)
	})
}

// pulse is a 1.2 Hz (72 bpm) sine sampled at 30 Hz.
func pulse(n int) []float64 {
	x := make([]float64, n)
	for i := range x {
		x[i] = math.Sin(2 * math.Pi * 1.2 * float64(i) / 30)
	}
	return x
}
