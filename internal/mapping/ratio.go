package mapping

import (
	"github.com/Jhh003/Ayaya-Miliastra-Editor-sub004/pkg/geometry"
)

// Minimum spacings below which a ratio check is skipped as noise. Model
// coordinates and detection pixels have different scales before calibration,
// so the floors differ.
const (
	minModelSpacing = 50.0
	minDetSpacing   = 10.0
)

// RatioChecker validates a candidate (model, detection) pair against a
// reference set of unambiguous pairs by comparing per-axis inter-node
// distance ratios. X spacings are only compared with X spacings and Y with Y,
// which keeps the check valid before any transform exists.
type RatioChecker struct {
	refModel  []geometry.Point2D
	refDet    []geometry.Point2D
	tolerance float64
}

// NewRatioChecker builds a checker from the unique-title reference pairs.
// Returns nil when fewer than two references exist; callers treat a nil
// checker as "no filtering".
func NewRatioChecker(base []Pair, tolerance float64) *RatioChecker {
	if len(base) < 2 {
		return nil
	}
	c := &RatioChecker{tolerance: tolerance}
	for _, p := range base {
		c.refModel = append(c.refModel, p.Node.Pos)
		c.refDet = append(c.refDet, p.Det.BBox.TopLeft())
	}
	return c
}

// Matches reports whether the candidate pair's spacing ratios agree with the
// references on both axes. At least half of the usable ratio checks must pass
// per axis.
func (c *RatioChecker) Matches(modelPos, detPos geometry.Point2D) bool {
	xPass := c.axisConsistent(modelPos.X, detPos.X, func(p geometry.Point2D) float64 { return p.X })
	yPass := c.axisConsistent(modelPos.Y, detPos.Y, func(p geometry.Point2D) float64 { return p.Y })
	return xPass && yPass
}

func (c *RatioChecker) axisConsistent(modelCoord, detCoord float64, axis func(geometry.Point2D) float64) bool {
	modelDist := make([]float64, len(c.refModel))
	detDist := make([]float64, len(c.refDet))
	for i := range c.refModel {
		modelDist[i] = abs(modelCoord - axis(c.refModel[i]))
		detDist[i] = abs(detCoord - axis(c.refDet[i]))
	}

	checks, matches := 0, 0
	for i := 0; i < len(modelDist); i++ {
		for j := i + 1; j < len(modelDist); j++ {
			if modelDist[i] < minModelSpacing || modelDist[j] < minModelSpacing {
				continue
			}
			if detDist[i] < minDetSpacing || detDist[j] < minDetSpacing {
				continue
			}
			checks++
			modelRatio := safeDiv(modelDist[i], modelDist[j])
			detRatio := safeDiv(detDist[i], detDist[j])
			maxRatio := modelRatio
			if detRatio > maxRatio {
				maxRatio = detRatio
			}
			if maxRatio < 0.01 {
				maxRatio = 0.01
			}
			if abs(modelRatio-detRatio) <= c.tolerance*maxRatio {
				matches++
			}
		}
	}
	// No usable checks means no evidence against the pair.
	return checks == 0 || float64(matches)/float64(checks) >= 0.5
}

func safeDiv(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return a / b
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
