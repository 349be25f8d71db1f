package geometry

import (
	"context"
	"fmt"
	"math"
)

// Point is a 2-D image coordinate.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Polygon4 approximates a document's edges with exactly four points.
type Polygon4 [4]Point

// Engine locates a document boundary in a raster image and warps the bounded
// region into an upright rectangle. DetectBoundary returns a nil polygon when
// no candidate clears the engine's confidence threshold; that is a normal
// outcome, not an error. Implementations must be deterministic for a fixed
// input.
type Engine interface {
	DetectBoundary(ctx context.Context, rasterPath string) (*Polygon4, error)
	Rectify(ctx context.Context, rasterPath string, polygon Polygon4, outputPath string) error
}

// Validate rejects degenerate quadrilaterals: repeated points, (near-)collinear
// corners, and self-intersecting edge orderings all make the homography
// singular.
func (p Polygon4) Validate() error {
	for i := 0; i < 4; i++ {
		for j := i + 1; j < 4; j++ {
			if p[i] == p[j] {
				return fmt.Errorf("degenerate polygon: duplicate point (%g, %g)", p[i].X, p[i].Y)
			}
		}
	}

	for i := 0; i < 4; i++ {
		a, b, c := p[i], p[(i+1)%4], p[(i+2)%4]
		if math.Abs(cross(a, b, c)) < 1e-9 {
			return fmt.Errorf("degenerate polygon: collinear points")
		}
	}

	// Opposite edges of a simple quadrilateral never cross.
	if segmentsIntersect(p[0], p[1], p[2], p[3]) || segmentsIntersect(p[1], p[2], p[3], p[0]) {
		return fmt.Errorf("degenerate polygon: self-intersecting")
	}
	return nil
}

func cross(o, a, b Point) float64 {
	return (a.X-o.X)*(b.Y-o.Y) - (a.Y-o.Y)*(b.X-o.X)
}

func segmentsIntersect(p1, p2, p3, p4 Point) bool {
	d1 := cross(p3, p4, p1)
	d2 := cross(p3, p4, p2)
	d3 := cross(p1, p2, p3)
	d4 := cross(p1, p2, p4)
	return ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0))
}
