package predictor

import (
	"context"
	"testing"
)

func TestLocalUntrainedStaysClosed(t *testing.T) {
	m := NewLocal()
	p, err := m.Predict(context.Background(), map[string]float64{"rsi": 25})
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if p.Direction != Down || p.Confidence != 0 {
		t.Fatalf("untrained model answered %+v, want Down with zero confidence", p)
	}
	if m.Metrics().Trained {
		t.Fatal("untrained model reports Trained")
	}
}

func TestLocalTrainRejectsSmallSets(t *testing.T) {
	m := NewLocal()
	samples := []Sample{{Features: map[string]float64{"rsi": 20}, Label: 1}}
	if _, err := m.Train(context.Background(), samples); err != ErrInsufficientData {
		t.Fatalf("expected ErrInsufficientData, got %v", err)
	}
	// Failed fit must leave the model untrained.
	p, _ := m.Predict(context.Background(), map[string]float64{"rsi": 20})
	if p.Confidence != 0 {
		t.Fatalf("model trained despite rejected fit: %+v", p)
	}
}

// separableSamples returns a set where low RSI wins and high RSI loses.
func separableSamples(n int) []Sample {
	samples := make([]Sample, 0, n)
	for i := 0; i < n; i++ {
		if i%2 == 0 {
			samples = append(samples, Sample{
				Features: map[string]float64{"rsi": 20 + float64(i%5), "bb_position": 0.1},
				Label:    1,
			})
		} else {
			samples = append(samples, Sample{
				Features: map[string]float64{"rsi": 75 + float64(i%5), "bb_position": 0.9},
				Label:    0,
			})
		}
	}
	return samples
}

func TestLocalLearnsSeparableData(t *testing.T) {
	m := NewLocal()
	acc, err := m.Train(context.Background(), separableSamples(40))
	if err != nil {
		t.Fatalf("Train: %v", err)
	}
	if acc < 0.9 {
		t.Fatalf("training accuracy = %v, want >= 0.9 on separable data", acc)
	}

	up, err := m.Predict(context.Background(), map[string]float64{"rsi": 22, "bb_position": 0.1})
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if up.Direction != Up {
		t.Fatalf("oversold vector predicted %+v, want Up", up)
	}
	if up.Confidence < 0.5 {
		t.Fatalf("confidence = %v, want >= 0.5", up.Confidence)
	}

	down, err := m.Predict(context.Background(), map[string]float64{"rsi": 78, "bb_position": 0.9})
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if down.Direction != Down {
		t.Fatalf("overbought vector predicted %+v, want Down", down)
	}

	got := m.Metrics()
	if !got.Trained || got.SampleCount != 40 {
		t.Fatalf("unexpected metrics: %+v", got)
	}
}

func TestLocalPredictNilFeatures(t *testing.T) {
	m := NewLocal()
	if _, err := m.Train(context.Background(), separableSamples(20)); err != nil {
		t.Fatalf("Train: %v", err)
	}
	p, err := m.Predict(context.Background(), nil)
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if p.Direction != Down || p.Confidence != 0 {
		t.Fatalf("nil features answered %+v, want closed gate", p)
	}
}
