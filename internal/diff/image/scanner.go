package image

// blockEqualFunc reports whether the BlockSize pixels starting at (x, y) are
// bit-identical in both sources.
type blockEqualFunc func(x int, y int) bool

func bulkBlockEqual[S BlockSource](baseline S, target S) blockEqualFunc {
	return func(x int, y int) bool {
		return baseline.BlockAt(x, y) == target.BlockAt(x, y)
	}
}

func naiveBlockEqual[S PixelSource](baseline S, target S) blockEqualFunc {
	return func(x int, y int) bool {
		for i := 0; i < BlockSize; i++ {
			if baseline.PixelAt(x+i, y) != target.PixelAt(x+i, y) {
				return false
			}
		}
		return true
	}
}

// scanner walks the overlap of two sources once, growing a rectangle from
// every differing pixel that no earlier rectangle covers.
type scanner[S PixelSource] struct {
	baseline   S
	target     S
	comparator Comparator
	blockEqual blockEqualFunc

	width   int
	height  int
	visited []bool

	rectangles []Rectangle
}

func newScanner[S PixelSource](baseline S, target S, comparator Comparator, blockEqual blockEqualFunc, rectangles []Rectangle) *scanner[S] {
	width := min(baseline.Width(), target.Width())
	height := min(baseline.Height(), target.Height())

	return &scanner[S]{
		baseline:   baseline,
		target:     target,
		comparator: comparator,
		blockEqual: blockEqual,
		width:      width,
		height:     height,
		visited:    make([]bool, width*height),
		rectangles: rectangles,
	}
}

func (s *scanner[S]) scan() []Rectangle {
	for y := 0; y < s.height; y++ {
		if s.blockEqual == nil {
			s.detect(0, s.width, y)
			continue
		}

		x := 0
		for ; x+BlockSize <= s.width; x += BlockSize {
			if !s.blockEqual(x, y) {
				s.detect(x, x+BlockSize, y)
			}
		}
		s.detect(x, s.width, y)
	}

	return s.rectangles
}

func (s *scanner[S]) detect(fromX int, toX int, y int) {
	for x := fromX; x < toX; x++ {
		if s.differs(x, y) {
			s.rectangles = append(s.rectangles, s.grow(x, y))
		}
	}
}

func (s *scanner[S]) differs(x int, y int) bool {
	return !s.visited[y*s.width+x] && !s.comparator.Equal(s.baseline.PixelAt(x, y), s.target.PixelAt(x, y))
}

func (s *scanner[S]) grow(startX int, startY int) Rectangle {
	s.visited[startY*s.width+startX] = true

	endX := startX
	for endX+1 < s.width && s.differs(endX+1, startY) {
		endX++
		s.visited[startY*s.width+endX] = true
	}

	endY := startY
	for endY+1 < s.height && s.rowDiffers(startX, endX, endY+1) {
		endY++
		row := s.visited[endY*s.width : (endY+1)*s.width]
		for x := startX; x <= endX; x++ {
			row[x] = true
		}
	}

	return Rectangle{
		Left:   startX,
		Top:    startY,
		Width:  endX - startX + 1,
		Height: endY - startY + 1,
	}
}

// rowDiffers reports whether every pixel of [startX, endX] on row y is
// unvisited and differs.
func (s *scanner[S]) rowDiffers(startX int, endX int, y int) bool {
	for x := startX; x <= endX; x++ {
		if !s.differs(x, y) {
			return false
		}
	}
	return true
}
