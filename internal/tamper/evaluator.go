package tamper

import (
	"math"

	"github.com/ppiankov/credtrust/internal/model"
)

// Evaluator interprets the distortion score and the model outputs
type Evaluator struct {
	model                Model
	elaThreshold         float64
	probabilityThreshold float64
	anomalyZ             float64
}

// NewEvaluator creates an evaluator. m may be nil, in which case the
// heuristic mode is used whenever a distortion score is available.
func NewEvaluator(m Model, cfg model.TamperConfig) *Evaluator {
	e := &Evaluator{
		model:                m,
		elaThreshold:         cfg.ELAThreshold,
		probabilityThreshold: cfg.ProbabilityThreshold,
		anomalyZ:             cfg.AnomalyZ,
	}
	if e.elaThreshold <= 0 {
		e.elaThreshold = 15
	}
	if e.probabilityThreshold <= 0 {
		e.probabilityThreshold = 0.5
	}
	if e.anomalyZ <= 0 {
		e.anomalyZ = 3
	}
	return e
}

// HasModel reports whether a statistical model is loaded
func (e *Evaluator) HasModel() bool {
	return e != nil && e.model != nil
}

// Evaluate produces the tamper check for a feature vector. ela is nil when
// no artifact was scored.
func (e *Evaluator) Evaluate(features map[string]float64, ela *float64, stats *model.HistoricalStats) model.TamperCheck {
	check := model.TamperCheck{
		ELAScore: ela,
		Features: features,
	}

	if e.HasModel() {
		check.Mode = model.TamperModeModel
		check.Probability = e.model.ClassifyTamperProbability(features)
		check.AnomalyScore = e.model.ScoreAnomaly(features)
		if check.Probability != nil {
			check.Likely = *check.Probability >= e.probabilityThreshold
		}
		if check.AnomalyScore != nil {
			check.Anomaly = *check.AnomalyScore >= e.anomalyZ
		}
		check.CheckStatus = model.OK()
		return check
	}

	if ela == nil {
		check.Mode = model.TamperModeUnavailable
		check.CheckStatus = model.Skipped(model.ReasonNoData)
		return check
	}

	check.Mode = model.TamperModeHeuristic
	check.Likely = *ela >= e.elaThreshold
	check.CheckStatus = model.OK()

	if stats != nil {
		worst, ok := zScore(*ela, stats.ELAMean, stats.ELAStdDev)
		if marks, present := features[FeatureMarksPercent]; present && features[FeatureMarksMissing] == 0 {
			if z, zok := zScore(marks, stats.MarksMean, stats.MarksStdDev); zok {
				if !ok || z > worst {
					worst = z
				}
				ok = true
			}
		}
		if ok {
			check.AnomalyScore = &worst
			check.Anomaly = worst >= e.anomalyZ
		}
	}
	return check
}

// zScore returns |x-mean|/sd, or false when the statistics are incomplete
func zScore(x float64, mean, sd *float64) (float64, bool) {
	if mean == nil || sd == nil || *sd <= 0 {
		return 0, false
	}
	return math.Abs(x-*mean) / *sd, true
}
