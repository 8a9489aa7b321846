package predictor

import (
	"context"
	"math"
	"sync"
	"time"

	"trading-bot/internal/features"
)

const (
	minTrainSamples = 10
	trainEpochs     = 200
	learningRate    = 0.1
)

// Local is an in-process logistic model over the standard feature vector.
// It standardizes features with statistics captured at fit time, so raw
// price-scale inputs do not swamp the weights.
type Local struct {
	mu      sync.Mutex
	w       []float64
	b       float64
	mean    []float64
	std     []float64
	trained bool
	metrics Metrics
}

// NewLocal builds an untrained model.
func NewLocal() *Local {
	return &Local{
		w:    make([]float64, len(features.Names)),
		mean: make([]float64, len(features.Names)),
		std:  make([]float64, len(features.Names)),
	}
}

// Predict scores a feature map. Before the first successful Train it always
// answers (Down, 0) so the confidence gate stays closed.
func (m *Local) Predict(_ context.Context, f map[string]float64) (Prediction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.trained || f == nil {
		return Prediction{Direction: Down, Confidence: 0}, nil
	}

	p := m.score(features.Vector(f))
	if p >= 0.5 {
		return Prediction{Direction: Up, Confidence: p}, nil
	}
	return Prediction{Direction: Down, Confidence: 1 - p}, nil
}

// Train fits the model with SGD over cross-entropy loss and returns the
// training-set accuracy. A failed fit leaves the previous model in place.
func (m *Local) Train(_ context.Context, samples []Sample) (float64, error) {
	if len(samples) < minTrainSamples {
		return 0, ErrInsufficientData
	}

	dim := len(features.Names)
	xs := make([][]float64, len(samples))
	ys := make([]float64, len(samples))
	for i, s := range samples {
		xs[i] = features.Vector(s.Features)
		ys[i] = float64(s.Label)
	}

	mean, std := standardStats(xs, dim)
	for _, x := range xs {
		standardize(x, mean, std)
	}

	w := make([]float64, dim)
	b := 0.0
	for epoch := 0; epoch < trainEpochs; epoch++ {
		for i, x := range xs {
			p := sigmoid(dot(w, x) + b)
			grad := p - ys[i]
			for j := range w {
				w[j] -= learningRate * grad * x[j]
			}
			b -= learningRate * grad
		}
	}

	correct := 0
	for i, x := range xs {
		p := sigmoid(dot(w, x) + b)
		if (p >= 0.5) == (ys[i] == 1) {
			correct++
		}
	}
	accuracy := float64(correct) / float64(len(xs))

	m.mu.Lock()
	defer m.mu.Unlock()
	m.w, m.b = w, b
	m.mean, m.std = mean, std
	m.trained = true
	m.metrics = Metrics{
		Trained:     true,
		Accuracy:    accuracy,
		SampleCount: len(samples),
		TrainedAt:   time.Now(),
		Version:     "local-logit-v1",
	}
	return accuracy, nil
}

// Metrics returns the state of the last fit.
func (m *Local) Metrics() Metrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.metrics
}

// score expects the caller to hold the lock.
func (m *Local) score(x []float64) float64 {
	standardize(x, m.mean, m.std)
	return sigmoid(dot(m.w, x) + m.b)
}

func dot(w, x []float64) float64 {
	z := 0.0
	for i := range w {
		z += w[i] * x[i]
	}
	return z
}

// sigmoid returns 1/(1+e^-x) with clamping for numerical stability.
func sigmoid(x float64) float64 {
	if x > 20 {
		return 1
	}
	if x < -20 {
		return 0
	}
	return 1 / (1 + math.Exp(-x))
}

func standardStats(xs [][]float64, dim int) (mean, std []float64) {
	mean = make([]float64, dim)
	std = make([]float64, dim)
	for _, x := range xs {
		for j := range mean {
			mean[j] += x[j]
		}
	}
	for j := range mean {
		mean[j] /= float64(len(xs))
	}
	for _, x := range xs {
		for j := range std {
			d := x[j] - mean[j]
			std[j] += d * d
		}
	}
	for j := range std {
		std[j] = math.Sqrt(std[j] / float64(len(xs)))
		if std[j] == 0 {
			std[j] = 1
		}
	}
	return mean, std
}

func standardize(x, mean, std []float64) {
	for j := range x {
		x[j] = (x[j] - mean[j]) / std[j]
	}
}
