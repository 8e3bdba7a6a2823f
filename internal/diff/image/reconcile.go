package image

// boundaryStrips returns the rows and columns that only the target has.
// A target smaller than the baseline yields nothing for the missing area.
func boundaryStrips(baselineWidth int, baselineHeight int, targetWidth int, targetHeight int) []Rectangle {
	rectangles := make([]Rectangle, 0, 2)

	if targetHeight > baselineHeight {
		rectangles = append(rectangles, Rectangle{
			Left:   0,
			Top:    baselineHeight,
			Width:  targetWidth,
			Height: targetHeight - baselineHeight,
		})
	}

	if targetWidth > baselineWidth {
		rectangles = append(rectangles, Rectangle{
			Left:   baselineWidth,
			Top:    0,
			Width:  targetWidth - baselineWidth,
			Height: baselineHeight,
		})
	}

	return rectangles
}
