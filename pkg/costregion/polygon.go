package costregion

import "math"

// Point is a (transfer cost, duplication cost) pair.
type Point struct {
	Transfer    float64 `json:"transfer"`
	Duplication float64 `json:"duplication"`
}

// halfPlane holds the points with A*Transfer + B*Duplication + C <= 0.
type halfPlane struct{ a, b, c float64 }

func (h halfPlane) eval(p Point) float64 { return h.a*p.Transfer + h.b*p.Duplication + h.c }

const eps = 1e-9

// clip intersects a convex polygon with a half-plane (Sutherland-Hodgman).
func clip(poly []Point, h halfPlane) []Point {
	if len(poly) == 0 {
		return nil
	}
	var out []Point
	for i, cur := range poly {
		prev := poly[(i+len(poly)-1)%len(poly)]
		fc, fp := h.eval(cur), h.eval(prev)
		inC, inP := fc <= eps, fp <= eps
		if inC != inP {
			t := fp / (fp - fc)
			out = append(out, Point{
				Transfer:    prev.Transfer + t*(cur.Transfer-prev.Transfer),
				Duplication: prev.Duplication + t*(cur.Duplication-prev.Duplication),
			})
		}
		if inC {
			out = append(out, cur)
		}
	}
	return dedupe(out)
}

// dedupe drops consecutive coincident vertices.
func dedupe(poly []Point) []Point {
	var out []Point
	for _, p := range poly {
		if len(out) > 0 && near(out[len(out)-1], p) {
			continue
		}
		out = append(out, p)
	}
	for len(out) > 1 && near(out[0], out[len(out)-1]) {
		out = out[:len(out)-1]
	}
	return out
}

func near(a, b Point) bool {
	return math.Abs(a.Transfer-b.Transfer) <= eps && math.Abs(a.Duplication-b.Duplication) <= eps
}

// area returns the unsigned area of a simple polygon.
func area(poly []Point) float64 {
	var s float64
	for i, p := range poly {
		q := poly[(i+1)%len(poly)]
		s += p.Transfer*q.Duplication - q.Transfer*p.Duplication
	}
	return math.Abs(s) / 2
}

// centroid returns the area centroid of a polygon, or the vertex mean for
// degenerate polygons.
func centroid(poly []Point) Point {
	var a, cx, cy float64
	for i, p := range poly {
		q := poly[(i+1)%len(poly)]
		cross := p.Transfer*q.Duplication - q.Transfer*p.Duplication
		a += cross
		cx += (p.Transfer + q.Transfer) * cross
		cy += (p.Duplication + q.Duplication) * cross
	}
	if math.Abs(a) <= eps {
		var c Point
		for _, p := range poly {
			c.Transfer += p.Transfer / float64(len(poly))
			c.Duplication += p.Duplication / float64(len(poly))
		}
		return c
	}
	return Point{Transfer: cx / (3 * a), Duplication: cy / (3 * a)}
}
