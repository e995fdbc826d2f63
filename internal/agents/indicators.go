package agents

import "math"

// Indicator math over close-price series ordered oldest first. All
// functions return NaN when the series is shorter than the period.

// SMA returns the simple moving average of the last period values.
func SMA(closes []float64, period int) float64 {
	if period <= 0 || len(closes) < period {
		return math.NaN()
	}
	var sum float64
	for _, c := range closes[len(closes)-period:] {
		sum += c
	}
	return sum / float64(period)
}

// EMA returns the exponential moving average over the whole series with the
// given span, seeded with the first value.
func EMA(closes []float64, span int) float64 {
	if span <= 0 || len(closes) < span {
		return math.NaN()
	}
	alpha := 2.0 / float64(span+1)
	ema := closes[0]
	for _, c := range closes[1:] {
		ema = alpha*c + (1-alpha)*ema
	}
	return ema
}

// RSI returns the 14-style relative strength index over the last period
// changes, in [0, 100].
func RSI(closes []float64, period int) float64 {
	if period <= 0 || len(closes) < period+1 {
		return math.NaN()
	}
	var gains, losses float64
	start := len(closes) - period
	for i := start; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			gains += change
		} else {
			losses -= change
		}
	}
	if losses == 0 {
		return 100
	}
	rs := (gains / float64(period)) / (losses / float64(period))
	return 100 - 100/(1+rs)
}

// MACD returns the MACD line (EMA12 - EMA26) and its 9-span signal line.
func MACD(closes []float64) (macd, signal float64) {
	if len(closes) < 26 {
		return math.NaN(), math.NaN()
	}
	// Build the MACD series so the signal line can be smoothed over it.
	alpha12 := 2.0 / 13.0
	alpha26 := 2.0 / 27.0
	ema12 := closes[0]
	ema26 := closes[0]
	series := make([]float64, 0, len(closes))
	for _, c := range closes {
		ema12 = alpha12*c + (1-alpha12)*ema12
		ema26 = alpha26*c + (1-alpha26)*ema26
		series = append(series, ema12-ema26)
	}

	alpha9 := 2.0 / 10.0
	sig := series[0]
	for _, m := range series[1:] {
		sig = alpha9*m + (1-alpha9)*sig
	}
	return series[len(series)-1], sig
}

// Bollinger returns the middle, upper, and lower bands for the last period
// values using two standard deviations.
func Bollinger(closes []float64, period int) (middle, upper, lower float64) {
	mid := SMA(closes, period)
	if math.IsNaN(mid) {
		return math.NaN(), math.NaN(), math.NaN()
	}
	var variance float64
	for _, c := range closes[len(closes)-period:] {
		variance += (c - mid) * (c - mid)
	}
	sd := math.Sqrt(variance / float64(period))
	return mid, mid + 2*sd, mid - 2*sd
}
