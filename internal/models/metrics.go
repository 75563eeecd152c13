package models

import (
	"fmt"
	"math"
	"strconv"
)

// Metrics holds the four display strings rendered for an [Analysis].
type Metrics struct {
	DetectionConfidence string `json:"detection_confidence"`
	PosesDetected       string `json:"poses_detected"`
	DetectionRate       string `json:"detection_rate"`
	TechniqueScore      string `json:"technique_score"`
}

// ComputeMetrics derives the display metrics for a.
func ComputeMetrics(a Analysis) Metrics {
	return Metrics{
		DetectionConfidence: Percent(a.PoseDetectionConfidence),
		PosesDetected:       PosesFraction(a.PosesDetected, a.DetectionRate),
		DetectionRate:       FormatNumber(a.DetectionRate) + "%",
		TechniqueScore:      Percent(a.TechniqueScore),
	}
}

// Percent renders a [0,1] ratio as a rounded whole percentage ("0.87" -> "87%").
func Percent(ratio float64) string {
	v := roundHalfUp(ratio * 100)
	if n, ok := toInt(v); ok {
		return strconv.Itoa(n) + "%"
	}
	return strconv.FormatFloat(v, 'f', -1, 64) + "%"
}

// ExpectedPoses back-computes the total pose count implied by detected poses and the
// detection rate (a percentage): round(detected / (rate / 100)).
//
// ok is false when the rate does not yield a total that fits in an int.
func ExpectedPoses(detected int, detectionRate float64) (total int, ok bool) {
	return toInt(roundHalfUp(float64(detected) / (detectionRate / 100)))
}

// PosesFraction renders "detected/total" using [ExpectedPoses]; an undefined total renders as "?".
func PosesFraction(detected int, detectionRate float64) string {
	total, ok := ExpectedPoses(detected, detectionRate)
	if !ok {
		return strconv.Itoa(detected) + "/?"
	}
	return fmt.Sprintf("%d/%d", detected, total)
}

// toInt converts an integral float, rejecting NaN, infinities and values outside the int range.
func toInt(v float64) (int, bool) {
	if math.IsNaN(v) || v >= math.MaxInt || v < math.MinInt {
		return 0, false
	}
	return int(v), true
}

// roundHalfUp rounds .5 toward positive infinity, so 0.5 -> 1 and -0.5 -> 0.
func roundHalfUp(v float64) float64 {
	return math.Floor(v + 0.5)
}
