// Package forecast fits an additive Holt-Winters model with a 12-month season
// over monthly booking counts and projects future volume with 95% bounds.
package forecast

import (
	"errors"
	"math"
	"sort"
)

const seasonLength = 12

// smoothing factors; fixed rather than optimized, which is plenty for the
// volume dashboards this feeds
const (
	alpha = 0.35
	beta  = 0.05
	gamma = 0.15
)

type Request struct {
	HasDecimal int                  `json:"has_decimal"`
	Dataset    map[string][]float64 `json:"dataset"`
	Steps      int                  `json:"steps"`
}

type Point struct {
	Month    int     `json:"month"`
	Forecast float64 `json:"forecast"`
	Lower95  float64 `json:"lower95CI"`
	Upper95  float64 `json:"upper95CI"`
}

type Response struct {
	ForecastYear int     `json:"forecast_year"`
	Result       []Point `json:"forecast_result"`
}

var (
	ErrEmptyDataset     = errors.New("dataset is missing or empty")
	ErrIncompleteYear   = errors.New("every year must have 12 monthly values")
	ErrInsufficientData = errors.New("at least 2 years of monthly data are required")
	ErrInvalidSteps     = errors.New("steps must be at least 1")
)

// Run validates the request, flattens the per-year dataset into one series in
// year order and forecasts the requested number of months.
func Run(req Request) (Response, error) {
	if req.Steps == 0 {
		req.Steps = seasonLength
	}
	if req.Steps < 1 {
		return Response{}, ErrInvalidSteps
	}
	if len(req.Dataset) == 0 {
		return Response{}, ErrEmptyDataset
	}

	years := make([]string, 0, len(req.Dataset))
	for year := range req.Dataset {
		years = append(years, year)
	}
	sort.Strings(years)

	var series []float64
	for _, year := range years {
		values := req.Dataset[year]
		if len(values) != seasonLength {
			return Response{}, ErrIncompleteYear
		}
		series = append(series, values...)
	}

	if len(series) < 2*seasonLength {
		return Response{}, ErrInsufficientData
	}

	forecasts, residualStd := holtWinters(series, req.Steps)

	lastYear := atoiYear(years[len(years)-1])
	result := make([]Point, req.Steps)
	for i, value := range forecasts {
		margin := 1.96 * residualStd
		point := Point{
			Month:    i%seasonLength + 1,
			Forecast: value,
			Lower95:  value - margin,
			Upper95:  value + margin,
		}
		if req.HasDecimal == 0 {
			point.Forecast = math.Round(point.Forecast)
			point.Lower95 = math.Round(point.Lower95)
			point.Upper95 = math.Round(point.Upper95)
		} else {
			point.Forecast = round2(point.Forecast)
			point.Lower95 = round2(point.Lower95)
			point.Upper95 = round2(point.Upper95)
		}
		result[i] = point
	}

	return Response{
		ForecastYear: lastYear + 1,
		Result:       result,
	}, nil
}

// holtWinters runs additive triple exponential smoothing and returns the
// forecast plus the standard deviation of one-step in-sample errors.
func holtWinters(series []float64, steps int) ([]float64, float64) {
	seasons := len(series) / seasonLength

	// initial level and trend from the first two seasons
	var firstMean, secondMean float64
	for i := 0; i < seasonLength; i++ {
		firstMean += series[i]
		secondMean += series[seasonLength+i]
	}
	firstMean /= seasonLength
	secondMean /= seasonLength

	level := firstMean
	trend := (secondMean - firstMean) / seasonLength

	// initial seasonal components: average deviation from each season's mean
	seasonal := make([]float64, seasonLength)
	for i := 0; i < seasonLength; i++ {
		for s := 0; s < seasons; s++ {
			var seasonMean float64
			for j := 0; j < seasonLength; j++ {
				seasonMean += series[s*seasonLength+j]
			}
			seasonMean /= seasonLength
			seasonal[i] += series[s*seasonLength+i] - seasonMean
		}
		seasonal[i] /= float64(seasons)
	}

	var sumSquares float64
	var count int
	for i, value := range series {
		sIdx := i % seasonLength

		predicted := level + trend + seasonal[sIdx]
		residual := value - predicted
		sumSquares += residual * residual
		count++

		lastLevel := level
		level = alpha*(value-seasonal[sIdx]) + (1-alpha)*(level+trend)
		trend = beta*(level-lastLevel) + (1-beta)*trend
		seasonal[sIdx] = gamma*(value-level) + (1-gamma)*seasonal[sIdx]
	}

	residualStd := math.Sqrt(sumSquares / float64(count))

	forecasts := make([]float64, steps)
	for h := 1; h <= steps; h++ {
		sIdx := (len(series) + h - 1) % seasonLength
		forecasts[h-1] = level + float64(h)*trend + seasonal[sIdx]
	}

	return forecasts, residualStd
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func atoiYear(year string) int {
	n := 0
	for _, r := range year {
		if r < '0' || r > '9' {
			return n
		}
		n = n*10 + int(r-'0')
	}
	return n
}
