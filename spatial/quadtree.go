package spatial

import (
	"math"
	"sort"
)

// Hierarchical Quadtree
//
// A flat, lazily populated map of cells for each of the 5 levels of detail.
// The particularities are:
//   - nodes are created on the first insertion in a cell and are never removed
//     automatically. The owner has to call RemoveNode when a cell leaves its
//     scope, otherwise memory grows without bound.
//   - levels are independent: an entity that must be visible at several levels
//     has to be inserted once per level.
//   - it is not safe for concurrent use. It is meant to be owned by a single
//     loop that runs every query of a tick sequentially.

type HierarchicalQuadtree struct {
	nodes map[WorldCoord]*QuadtreeNode
}

func NewHierarchicalQuadtree() *HierarchicalQuadtree {
	return &HierarchicalQuadtree{
		nodes: make(map[WorldCoord]*QuadtreeNode),
	}
}

// EnsureNode returns the node of the given cell, creating it when missing.
func (t *HierarchicalQuadtree) EnsureNode(coord WorldCoord) *QuadtreeNode {
	node, ok := t.nodes[coord]
	if !ok {
		node = NewQuadtreeNode(coord)
		t.nodes[coord] = node
	}
	return node
}

// Node returns the node of the given cell when it exists.
func (t *HierarchicalQuadtree) Node(coord WorldCoord) (*QuadtreeNode, bool) {
	node, ok := t.nodes[coord]
	return node, ok
}

// Len returns the number of live nodes.
func (t *HierarchicalQuadtree) Len() int {
	return len(t.nodes)
}

// InsertEntity indexes id in the cell that contains pos at the given level.
// Positions that cannot be placed in a cell, such as NaN or infinite ones, are
// rejected without creating a node.
func (t *HierarchicalQuadtree) InsertEntity(id uint32, pos Vector3f, level LODLevel) bool {
	if !level.Valid() {
		return false
	}

	coord := FromWorldPos(pos, level)
	if !coord.Contains(pos) {
		return false
	}
	return t.EnsureNode(coord).Insert(id, pos)
}

// QueryEntities returns the ids of the nodes at the given level whose square
// intersects the circle of the given radius around center. Only the cells
// within ceil(radius / chunk size) cells of the cell of center on each axis are
// visited.
//
// The cost grows with the square of radius / chunk size, so the level should
// be chosen with a chunk size close to the radius.
func (t *HierarchicalQuadtree) QueryEntities(center Vector3f, radius float32, level LODLevel) []uint32 {
	if !level.Valid() || !(radius >= 0) || !center.IsFinite() {
		return nil
	}

	var results []uint32

	// Two int32 cell indices are never more than MaxUint32 cells apart.
	cellRadius := math.Min(math.Ceil((float64)(radius)/(float64)(level.ChunkSize())), math.MaxUint32)
	sweepSize := (2*cellRadius + 1) * (2*cellRadius + 1)

	r := (int64)(cellRadius)
	centerCoord := FromWorldPos(center, level)

	// Sweeping more cells than there are nodes is wasted work: visiting the
	// live nodes of the level that fall in the sweep window, in sweep order,
	// gives the same result.
	if sweepSize > (float64)(len(t.nodes)) {
		for _, node := range t.sortedNodes(level) {
			if !withinCells(node.Coord, centerCoord, r) {
				continue
			}
			results = node.QueryRadius(center, radius, results)
		}
		return results
	}

	for dx := -r; dx <= r; dx++ {
		x := (int64)(centerCoord.X) + dx
		if x < math.MinInt32 || x > math.MaxInt32 {
			continue
		}

		for dz := -r; dz <= r; dz++ {
			z := (int64)(centerCoord.Z) + dz
			if z < math.MinInt32 || z > math.MaxInt32 {
				continue
			}

			node, ok := t.nodes[WorldCoord{Level: level, X: (int32)(x), Z: (int32)(z)}]
			if ok {
				results = node.QueryRadius(center, radius, results)
			}
		}
	}

	return results
}

// StreamingCoords returns, for each level, the cells whose center is within
// the level streaming radius of center.
//
// Coordinates are ordered by level (macro first), then by x, then by z so two
// successive results can be diffed deterministically. Nodes do not need to
// exist for their coordinates to be returned.
//
// Cell indices are int32, so a level only covers positions whose x and z are
// within 2^31 chunk sizes of the origin (about 5.3e10 at micro, 2.1e13 at
// macro). Levels that cannot represent center return no coordinates.
func (t *HierarchicalQuadtree) StreamingCoords(center Vector3f) []WorldCoord {
	var coords []WorldCoord

	for _, level := range Levels {
		active := FromWorldPos(center, level)
		streamingRadius := (float64)(level.StreamingRadius())
		chunkRadius := (int64)(math.Ceil(streamingRadius / (float64)(level.ChunkSize())))

		for dx := -chunkRadius; dx <= chunkRadius; dx++ {
			x := (int64)(active.X) + dx
			if x < math.MinInt32 || x > math.MaxInt32 {
				continue
			}

			for dz := -chunkRadius; dz <= chunkRadius; dz++ {
				z := (int64)(active.Z) + dz
				if z < math.MinInt32 || z > math.MaxInt32 {
					continue
				}

				coord := WorldCoord{Level: level, X: (int32)(x), Z: (int32)(z)}
				if Distance(center, coord.ToWorldPos()) <= streamingRadius {
					coords = append(coords, coord)
				}
			}
		}
	}

	return coords
}

// RemoveNode deletes the node of the given cell and returns the ids it
// indexed. It returns nil when the node does not exist.
func (t *HierarchicalQuadtree) RemoveNode(coord WorldCoord) []uint32 {
	node, ok := t.nodes[coord]
	if !ok {
		return nil
	}

	delete(t.nodes, coord)
	return node.Entities
}

// NodeCounts returns the number of live nodes for each level that has any.
func (t *HierarchicalQuadtree) NodeCounts() map[LODLevel]int {
	counts := make(map[LODLevel]int)
	for coord := range t.nodes {
		counts[coord.Level]++
	}
	return counts
}

func (t *HierarchicalQuadtree) GetDebugInfo() DebugInfo {
	result := DebugInfo{
		NodeCount: len(t.nodes),
		Levels:    make([]LevelDebugInfo, len(Levels)),
	}

	for i, level := range Levels {
		result.Levels[i].Level = level
	}

	for coord, node := range t.nodes {
		if !coord.Level.Valid() {
			continue
		}

		info := &result.Levels[coord.Level]
		info.NodeCount++
		info.EntityCount += len(node.Entities)
		if len(node.Entities) > info.MaxOccupancy {
			info.MaxOccupancy = len(node.Entities)
		}
		result.EntityCount += len(node.Entities)
	}

	return result
}

func (t *HierarchicalQuadtree) sortedNodes(level LODLevel) []*QuadtreeNode {
	nodes := make([]*QuadtreeNode, 0, len(t.nodes))
	for coord, node := range t.nodes {
		if coord.Level == level {
			nodes = append(nodes, node)
		}
	}

	sort.Slice(nodes, func(i, j int) bool {
		return nodes[i].Coord.Less(nodes[j].Coord)
	})
	return nodes
}

func withinCells(coord, center WorldCoord, r int64) bool {
	dx := (int64)(coord.X) - (int64)(center.X)
	dz := (int64)(coord.Z) - (int64)(center.Z)
	return dx >= -r && dx <= r && dz >= -r && dz <= r
}
