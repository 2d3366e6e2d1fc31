package pipeline

import (
	"strings"

	"gocv.io/x/gocv"
)

// hsvRange is an inclusive HSV bound pair. OpenCV hue runs 0-179.
type hsvRange struct {
	lower gocv.Scalar
	upper gocv.Scalar
}

// hsvRangesFor returns the HSV ranges describing a color name, or nil when
// the name is unknown. Red needs two ranges because hue wraps around 0.
func hsvRangesFor(name string) []hsvRange {
	switch strings.ToLower(name) {
	case "white":
		return []hsvRange{{gocv.NewScalar(0, 0, 180, 0), gocv.NewScalar(180, 50, 255, 0)}}
	case "black":
		return []hsvRange{{gocv.NewScalar(0, 0, 0, 0), gocv.NewScalar(180, 150, 80, 0)}}
	case "red":
		return []hsvRange{
			{gocv.NewScalar(0, 50, 50, 0), gocv.NewScalar(10, 255, 255, 0)},
			{gocv.NewScalar(170, 50, 50, 0), gocv.NewScalar(180, 255, 255, 0)},
		}
	case "blue":
		return []hsvRange{{gocv.NewScalar(100, 50, 50, 0), gocv.NewScalar(140, 255, 255, 0)}}
	case "green":
		return []hsvRange{{gocv.NewScalar(40, 50, 50, 0), gocv.NewScalar(80, 255, 255, 0)}}
	case "yellow":
		return []hsvRange{{gocv.NewScalar(20, 50, 50, 0), gocv.NewScalar(40, 255, 255, 0)}}
	}
	return nil
}

// matchesColor reports whether the target color occupies more than threshold
// of the ROI's pixels. Unknown color names and empty ROIs match everything,
// mirroring an unset filter.
func matchesColor(roi gocv.Mat, colorName string, threshold float64) bool {
	if colorName == "" || strings.EqualFold(colorName, "none") {
		return true
	}
	if roi.Empty() || roi.Rows() == 0 || roi.Cols() == 0 {
		return true
	}

	ranges := hsvRangesFor(colorName)
	if ranges == nil {
		return true
	}

	hsv := gocv.NewMat()
	defer hsv.Close()
	gocv.CvtColor(roi, &hsv, gocv.ColorBGRToHSV)

	total := gocv.Zeros(hsv.Rows(), hsv.Cols(), gocv.MatTypeCV8U)
	defer total.Close()

	for _, r := range ranges {
		mask := gocv.NewMat()
		gocv.InRangeWithScalar(hsv, r.lower, r.upper, &mask)
		gocv.BitwiseOr(total, mask, &total)
		mask.Close()
	}

	totalPixels := hsv.Rows() * hsv.Cols()
	matching := gocv.CountNonZero(total)

	return float64(matching)/float64(totalPixels) > threshold
}
