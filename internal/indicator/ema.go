// Package indicator computes MACD and RSI columns over a price series.
package indicator

import "math"

// EMA returns the recursive exponential moving average of values with the
// given span. The first output equals the first input; NaN inputs propagate.
func EMA(values []float64, span int) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}
	alpha := 2.0 / (float64(span) + 1.0)
	out[0] = values[0]
	for t := 1; t < len(values); t++ {
		out[t] = values[t]*alpha + out[t-1]*(1-alpha)
	}
	return out
}

// MACD returns the MACD line (fast EMA minus slow EMA) and its signal line
func MACD(emaFast, emaSlow []float64, signalSpan int) ([]float64, []float64) {
	line := make([]float64, len(emaFast))
	for t := range emaFast {
		line[t] = emaFast[t] - emaSlow[t]
	}
	return line, EMA(line, signalSpan)
}

// RSI returns the simple-rolling-mean relative strength index. The first
// window bars are NaN. When the average loss is zero the value is 100.
func RSI(closes []float64, window int) []float64 {
	out := make([]float64, len(closes))
	for i := range out {
		out[i] = math.NaN()
	}
	if window < 1 || len(closes) <= window {
		return out
	}

	gains := make([]float64, len(closes))
	losses := make([]float64, len(closes))
	for t := 1; t < len(closes); t++ {
		delta := closes[t] - closes[t-1]
		gains[t] = math.Max(delta, 0)
		losses[t] = math.Max(-delta, 0)
	}

	for t := window; t < len(closes); t++ {
		sumGain, sumLoss := 0.0, 0.0
		for j := t - window + 1; j <= t; j++ {
			sumGain += gains[j]
			sumLoss += losses[j]
		}
		avgGain := sumGain / float64(window)
		avgLoss := sumLoss / float64(window)
		if avgLoss == 0 {
			out[t] = 100
			continue
		}
		rs := avgGain / avgLoss
		out[t] = 100 - 100/(1+rs)
	}
	return out
}
