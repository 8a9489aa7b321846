// Package predictor scores feature vectors for trade direction.
package predictor

import (
	"context"
	"errors"
	"time"
)

// Direction is the predicted next move.
type Direction int

const (
	Down Direction = 0
	Up   Direction = 1
)

// Prediction is a direction with the model's confidence in it.
type Prediction struct {
	Direction  Direction
	Confidence float64
}

// Sample is one labeled training example.
type Sample struct {
	Features map[string]float64
	Label    int // 1 = the trade was profitable
}

// Metrics describes the current model.
type Metrics struct {
	Trained     bool
	Accuracy    float64
	SampleCount int
	TrainedAt   time.Time
	Version     string
}

// ErrInsufficientData is returned when a training set is too small to fit.
var ErrInsufficientData = errors.New("not enough samples to train")

// Predictor is the model surface the trading loop consumes. An untrained
// model must answer (Down, 0) rather than fail, so a cold start simply
// never passes the confidence gate.
type Predictor interface {
	Predict(ctx context.Context, features map[string]float64) (Prediction, error)
	Train(ctx context.Context, samples []Sample) (accuracy float64, err error)
	Metrics() Metrics
}
