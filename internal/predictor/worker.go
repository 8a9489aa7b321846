package predictor

import (
	"context"
	"fmt"
	"log"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	predictMethod = "/predictor.PredictorService/Predict"
	trainMethod   = "/predictor.PredictorService/Train"

	workerCallTimeout = 2 * time.Second
)

// Worker sends prediction and training work to an external ML worker over
// gRPC. Messages are google.protobuf.Struct, so the worker side needs no
// shared generated code. Every call falls back to the local model when the
// worker is unreachable, keeping the trading loop alive without it.
type Worker struct {
	conn     *grpc.ClientConn
	fallback *Local
}

// NewWorker dials the worker address. The connection is lazy; a worker that
// is down at startup only surfaces when calls fall back.
func NewWorker(addr string, fallback *Local) (*Worker, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("dial predict worker: %w", err)
	}
	return &Worker{conn: conn, fallback: fallback}, nil
}

// Close releases the worker connection.
func (w *Worker) Close() error {
	if w.conn == nil {
		return nil
	}
	return w.conn.Close()
}

// Predict asks the worker for a direction; on failure it answers from the
// local model.
func (w *Worker) Predict(ctx context.Context, f map[string]float64) (Prediction, error) {
	req, err := structpb.NewStruct(map[string]any{
		"features": floatsToAny(f),
	})
	if err != nil {
		return w.fallback.Predict(ctx, f)
	}

	callCtx, cancel := context.WithTimeout(ctx, workerCallTimeout)
	defer cancel()

	resp := new(structpb.Struct)
	if err := w.conn.Invoke(callCtx, predictMethod, req, resp); err != nil {
		log.Printf("predict worker unavailable, using local model: %v", err)
		return w.fallback.Predict(ctx, f)
	}

	fields := resp.GetFields()
	p := Prediction{Direction: Down}
	if fields["direction"].GetNumberValue() == 1 {
		p.Direction = Up
	}
	p.Confidence = fields["confidence"].GetNumberValue()
	return p, nil
}

// Train ships the sample set to the worker; on failure it trains the local
// model instead so learning never stalls.
func (w *Worker) Train(ctx context.Context, samples []Sample) (float64, error) {
	if len(samples) < minTrainSamples {
		return 0, ErrInsufficientData
	}

	rows := make([]any, 0, len(samples))
	for _, s := range samples {
		rows = append(rows, map[string]any{
			"features": floatsToAny(s.Features),
			"label":    float64(s.Label),
		})
	}
	req, err := structpb.NewStruct(map[string]any{"samples": rows})
	if err != nil {
		return w.fallback.Train(ctx, samples)
	}

	callCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	resp := new(structpb.Struct)
	if err := w.conn.Invoke(callCtx, trainMethod, req, resp); err != nil {
		log.Printf("predict worker unavailable, training local model: %v", err)
		return w.fallback.Train(ctx, samples)
	}

	// Mirror the fit locally as well, so fallback predictions after a later
	// outage come from a model of the same vintage.
	if _, err := w.fallback.Train(ctx, samples); err != nil {
		log.Printf("local mirror training failed: %v", err)
	}
	return resp.GetFields()["accuracy"].GetNumberValue(), nil
}

// Metrics reports the fallback model's state; the worker keeps its own.
func (w *Worker) Metrics() Metrics {
	m := w.fallback.Metrics()
	m.Version = "worker+" + m.Version
	return m
}

func floatsToAny(f map[string]float64) map[string]any {
	out := make(map[string]any, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}
