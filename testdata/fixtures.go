// Package testdata provides synthetic image fixtures for tests.
//
// The quality heuristics are threshold-exact, so fixtures are built
// programmatically: a uniform or split-fill region has luminance
// statistics that can be computed by hand and asserted against.
package testdata

import (
	"image"

	"gocv.io/x/gocv"
)

// UniformRegion returns a rows x cols single-channel Mat filled with value.
// The caller must Close the returned Mat.
func UniformRegion(rows, cols int, value float64) gocv.Mat {
	m := gocv.NewMatWithSize(rows, cols, gocv.MatTypeCV8UC1)
	m.SetTo(gocv.NewScalar(value, 0, 0, 0))
	return m
}

// SplitRegion returns a Mat whose top half is topValue and bottom half
// is bottomValue. Its mean is the average of the two values and its
// standard deviation is half their difference.
func SplitRegion(rows, cols int, topValue, bottomValue float64) gocv.Mat {
	m := gocv.NewMatWithSize(rows, cols, gocv.MatTypeCV8UC1)
	m.SetTo(gocv.NewScalar(bottomValue, 0, 0, 0))

	top := m.Region(image.Rect(0, 0, cols, rows/2))
	top.SetTo(gocv.NewScalar(topValue, 0, 0, 0))
	top.Close()

	return m
}

// CheckerRegion returns a Mat with alternating low/high pixels.
// The hard per-pixel edges give it a very large Laplacian variance,
// which makes it read as maximally sharp.
func CheckerRegion(rows, cols int, low, high uint8) gocv.Mat {
	m := gocv.NewMatWithSize(rows, cols, gocv.MatTypeCV8UC1)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			if (r+c)%2 == 0 {
				m.SetUCharAt(r, c, high)
			} else {
				m.SetUCharAt(r, c, low)
			}
		}
	}
	return m
}

// CheckerImagePNG returns losslessly encoded PNG bytes of a rows x cols
// BGR checkerboard. PNG keeps the per-pixel edges intact, so the decoded
// image has a known brightness, contrast and Laplacian variance.
func CheckerImagePNG(rows, cols int, low, high uint8) ([]byte, error) {
	gray := CheckerRegion(rows, cols, low, high)
	defer gray.Close()

	bgr := gocv.NewMat()
	defer bgr.Close()
	gocv.CvtColor(gray, &bgr, gocv.ColorGrayToBGR)

	buf, err := gocv.IMEncode(gocv.PNGFileExt, bgr)
	if err != nil {
		return nil, err
	}
	defer buf.Close()

	data := make([]byte, len(buf.GetBytes()))
	copy(data, buf.GetBytes())
	return data, nil
}

// FillRect fills the given rectangle of a single-channel Mat with value.
func FillRect(m *gocv.Mat, rect image.Rectangle, value float64) {
	roi := m.Region(rect)
	roi.SetTo(gocv.NewScalar(value, 0, 0, 0))
	roi.Close()
}
