package spatial

// LevelDebugInfo describes the live nodes of one level.
type LevelDebugInfo struct {
	Level        LODLevel `json:"level"`
	NodeCount    int      `json:"node_count"`
	EntityCount  int      `json:"entity_count"`
	MaxOccupancy int      `json:"max_occupancy"`
}

type DebugInfo struct {
	NodeCount   int              `json:"node_count"`
	EntityCount int              `json:"entity_count"`
	Levels      []LevelDebugInfo `json:"levels"`
}

// Index is a multi-resolution spatial index of entity ids.
type Index interface {
	InsertEntity(id uint32, pos Vector3f, level LODLevel) bool
	QueryEntities(center Vector3f, radius float32, level LODLevel) []uint32
	StreamingCoords(center Vector3f) []WorldCoord
	RemoveNode(coord WorldCoord) []uint32
	NodeCounts() map[LODLevel]int

	// debug stuff:
	GetDebugInfo() DebugInfo
}
