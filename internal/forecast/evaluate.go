package forecast

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"liquor-dashboard/internal/errors"
)

// Metrics scores a model on a holdout window it was not fitted on.
type Metrics struct {
	HoldoutDays    int     `json:"holdout_days"`
	MAPE           float64 `json:"mape"`
	RMSE           float64 `json:"rmse"`
	NormalizedRMSE float64 `json:"normalized_rmse"`
}

// Evaluate fits on all but the last holdout points and scores the rest.
// MAPE skips days whose actual value is zero. NormalizedRMSE divides by the
// holdout's value range and is zero for a flat holdout.
func Evaluate(history []Point, params Params, holdout int) (Metrics, error) {
	if holdout <= 0 {
		holdout = DefaultHoldoutDays
	}
	if len(history) < holdout+2 {
		return Metrics{}, errors.Validation(fmt.Sprintf("need more than %d days of history to evaluate", holdout+1))
	}

	history = sortedCopy(history)
	train, test := history[:len(history)-holdout], history[len(history)-holdout:]
	model := NewModel(params)
	if err := model.Fit(train); err != nil {
		return Metrics{}, err
	}

	actual := make([]float64, len(test))
	predicted := make([]float64, len(test))
	var pctErr float64
	var pctCount int
	for i, p := range test {
		actual[i] = p.Value
		predicted[i] = model.Predict(p.Date)
		if p.Value != 0 {
			pctErr += math.Abs((p.Value - predicted[i]) / p.Value)
			pctCount++
		}
	}

	m := Metrics{HoldoutDays: holdout}
	m.RMSE = floats.Distance(actual, predicted, 2) / math.Sqrt(float64(len(test)))
	if pctCount > 0 {
		m.MAPE = pctErr / float64(pctCount)
	}
	if lo, hi := floats.Min(actual), floats.Max(actual); hi > lo {
		m.NormalizedRMSE = m.RMSE / (hi - lo)
	}
	m.RMSE, m.MAPE, m.NormalizedRMSE = round2(m.RMSE), round2(m.MAPE), round2(m.NormalizedRMSE)
	return m, nil
}

// Result is a complete forecast response.
type Result struct {
	HorizonDays int          `json:"horizon_days"`
	Predictions []Prediction `json:"predictions"`
	Slope       float64      `json:"trend_per_day"`
	// Metrics is nil when the history is too short for a holdout.
	Metrics *Metrics `json:"metrics,omitempty"`
}

// Run fits history, projects it params.Months ahead and evaluates the model
// on the trailing holdout window when there is enough data.
func Run(history []Point, params Params) (*Result, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}

	model := NewModel(params)
	if err := model.Fit(history); err != nil {
		return nil, err
	}
	horizon := HorizonDays(params.Months)
	preds, err := model.Forecast(horizon)
	if err != nil {
		return nil, err
	}

	res := &Result{HorizonDays: horizon, Predictions: preds, Slope: round2(model.Slope())}
	if metrics, err := Evaluate(history, params, DefaultHoldoutDays); err == nil {
		res.Metrics = &metrics
	}
	return res, nil
}
