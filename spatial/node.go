package spatial

// QuadtreeNode indexes the entity ids located in one grid cell. It never
// subdivides: crowded cells are handled by inserting at a finer level, not by
// splitting the node.
type QuadtreeNode struct {
	Coord    WorldCoord
	Min      Vector3f
	Max      Vector3f
	Entities []uint32
}

func NewQuadtreeNode(coord WorldCoord) *QuadtreeNode {
	min, max := coord.Bounds()
	return &QuadtreeNode{
		Coord: coord,
		Min:   min,
		Max:   max,
	}
}

// ContainsPoint reports whether p is within [Min, Max[ on x and z.
func (n *QuadtreeNode) ContainsPoint(p Vector3f) bool {
	return p.x >= n.Min.x && p.x < n.Max.x && p.z >= n.Min.z && p.z < n.Max.z
}

// Insert appends id when pos is within the node bounds. It returns false and
// leaves the node untouched otherwise.
func (n *QuadtreeNode) Insert(id uint32, pos Vector3f) bool {
	if !n.ContainsPoint(pos) {
		return false
	}

	n.Entities = append(n.Entities, id)
	return true
}

// QueryRadius appends the node entities to results when the node square
// intersects the circle of the given radius around center, and returns the
// extended slice.
func (n *QuadtreeNode) QueryRadius(center Vector3f, radius float32, results []uint32) []uint32 {
	if len(n.Entities) == 0 || !n.intersectsCircle(center, radius) {
		return results
	}
	return append(results, n.Entities...)
}

// intersectsCircle tests the distance between center and the closest point
// of the node square. NaN inputs propagate to the final comparison, which is
// then false.
func (n *QuadtreeNode) intersectsCircle(center Vector3f, radius float32) bool {
	if !(radius >= 0) {
		return false
	}

	closestX := clamp(center.x, n.Min.x, n.Max.x)
	closestZ := clamp(center.z, n.Min.z, n.Max.z)

	dx := (float64)(center.x - closestX)
	dz := (float64)(center.z - closestZ)
	r := (float64)(radius)
	return dx*dx+dz*dz <= r*r
}

func clamp(v, min, max float32) float32 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
