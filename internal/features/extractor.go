// Package features turns raw candles into the indicator vector the model
// trains and predicts on.
package features

import (
	"math"

	"trading-bot/internal/market"
)

// MinCandles is the minimum history needed for a stable vector.
const MinCandles = 30

// Names lists the extracted indicators in a fixed order.
var Names = []string{
	"rsi", "macd", "macd_signal", "bb_position", "volume_ratio",
	"price_change_5m", "price_change_15m", "ema_9", "ema_21", "atr",
}

// Extract computes the indicator vector from minute candles (oldest first).
// Returns nil when there is not enough history; that is a skip signal, not
// an error.
func Extract(candles []market.Candle) map[string]float64 {
	if len(candles) < MinCandles {
		return nil
	}

	n := len(candles)
	closes := make([]float64, n)
	highs := make([]float64, n)
	lows := make([]float64, n)
	volumes := make([]float64, n)
	for i, c := range candles {
		closes[i] = c.Close
		highs[i] = c.High
		lows[i] = c.Low
		volumes[i] = c.Volume
	}
	last := closes[n-1]

	macdLine := macdSeries(closes)

	bbUpper, bbLower := bollinger(closes, 20, 2)
	bbPosition := 0.5
	if bbUpper != bbLower {
		bbPosition = (last - bbLower) / (bbUpper - bbLower)
	}

	volumeRatio := 1.0
	if volMA := sma(volumes, 20); volMA > 0 {
		volumeRatio = volumes[n-1] / volMA
	}

	return map[string]float64{
		"rsi":              rsi(closes, 14),
		"macd":             macdLine[len(macdLine)-1],
		"macd_signal":      ema(macdLine, 9),
		"bb_position":      bbPosition,
		"volume_ratio":     volumeRatio,
		"price_change_5m":  pctChange(closes, 5),
		"price_change_15m": pctChange(closes, 15),
		"ema_9":            ema(closes, 9),
		"ema_21":           ema(closes, 21),
		"atr":              atr(highs, lows, closes, 14),
	}
}

// Vector flattens a feature map into the fixed Names order.
func Vector(f map[string]float64) []float64 {
	v := make([]float64, len(Names))
	for i, name := range Names {
		v[i] = f[name]
	}
	return v
}

func sma(values []float64, period int) float64 {
	if period <= 0 || len(values) < period {
		return 0
	}
	sum := 0.0
	for i := len(values) - period; i < len(values); i++ {
		sum += values[i]
	}
	return sum / float64(period)
}

// ema returns the last value of the exponential moving average, seeded with
// the first observation.
func ema(values []float64, period int) float64 {
	s := emaSeries(values, period)
	if len(s) == 0 {
		return 0
	}
	return s[len(s)-1]
}

func emaSeries(values []float64, period int) []float64 {
	if len(values) == 0 || period <= 0 {
		return nil
	}
	k := 2.0 / (float64(period) + 1.0)
	out := make([]float64, len(values))
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = values[i]*k + out[i-1]*(1-k)
	}
	return out
}

// macdSeries is EMA12 minus EMA26 over the whole window, so the signal line
// can be smoothed from it.
func macdSeries(closes []float64) []float64 {
	fast := emaSeries(closes, 12)
	slow := emaSeries(closes, 26)
	out := make([]float64, len(closes))
	for i := range closes {
		out[i] = fast[i] - slow[i]
	}
	return out
}

func rsi(values []float64, period int) float64 {
	if period <= 0 || len(values) < period+1 {
		return 0
	}
	gain := 0.0
	loss := 0.0
	for i := len(values) - period; i < len(values); i++ {
		change := values[i] - values[i-1]
		if change > 0 {
			gain += change
		} else {
			loss -= change
		}
	}
	if loss == 0 {
		return 100
	}
	rs := gain / loss
	return 100 - (100 / (1 + rs))
}

func bollinger(values []float64, period int, width float64) (upper, lower float64) {
	mid := sma(values, period)
	if mid == 0 || len(values) < period {
		return 0, 0
	}
	variance := 0.0
	for i := len(values) - period; i < len(values); i++ {
		d := values[i] - mid
		variance += d * d
	}
	std := math.Sqrt(variance / float64(period-1))
	return mid + width*std, mid - width*std
}

func pctChange(values []float64, back int) float64 {
	n := len(values)
	if n < back || values[n-back] == 0 {
		return 0
	}
	return (values[n-1] - values[n-back]) / values[n-back]
}

func atr(highs, lows, closes []float64, period int) float64 {
	if len(closes) < period+1 {
		return 0
	}
	sum := 0.0
	for i := len(closes) - period; i < len(closes); i++ {
		tr := highs[i] - lows[i]
		if hc := math.Abs(highs[i] - closes[i-1]); hc > tr {
			tr = hc
		}
		if lc := math.Abs(lows[i] - closes[i-1]); lc > tr {
			tr = lc
		}
		sum += tr
	}
	return sum / float64(period)
}
