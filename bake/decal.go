package bake

// sidePasses is how many times the side gradient spreads outward.
const sidePasses = 5

// Decal is the heat footprint one agent leaves per bake. Row 0 sits on the
// agent and later rows trail behind it; the middle column is the agent's
// line of travel.
type Decal struct {
	Width, Height int
	Values        []uint8
}

// NewDecal builds a size x size decal (width rounded up to odd). The centre
// column falls from peak by forwardStep per row; the remaining cells take
// their hottest neighbour minus sideStep, spread over several passes.
func NewDecal(size int, peak, forwardStep, sideStep uint8) Decal {
	if size < 1 {
		size = 1
	}
	w := size
	if w%2 == 0 {
		w++
	}
	d := Decal{Width: w, Height: size, Values: make([]uint8, w*size)}

	mid := w / 2
	for y, v := 0, int(peak); y < size && v >= 0; y, v = y+1, v-int(forwardStep) {
		d.Values[y*w+mid] = uint8(v)
		if forwardStep == 0 {
			break
		}
	}

	for pass := 0; pass < sidePasses; pass++ {
		for x := 0; x < w; x++ {
			for y := 0; y < size; y++ {
				if d.Values[y*w+x] != 0 {
					continue
				}
				if v := int(d.neighbourMax(x, y)) - int(sideStep); v > 0 {
					d.Values[y*w+x] = uint8(v)
				}
			}
		}
	}
	return d
}

func (d Decal) neighbourMax(x, y int) uint8 {
	var m uint8
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			nx, ny := x+dx, y+dy
			if nx < 0 || ny < 0 || nx >= d.Width || ny >= d.Height {
				continue
			}
			m = max(m, d.Values[ny*d.Width+nx])
		}
	}
	return m
}

// At returns the value of cell (x, y).
func (d Decal) At(x, y int) uint8 {
	if x < 0 || y < 0 || x >= d.Width || y >= d.Height {
		return 0
	}
	return d.Values[y*d.Width+x]
}
