package featureflag

type Flag string

const (
	// Computes every distance instead of using the distance cache.
	FlagDisableDistanceCache Flag = "DISABLE_DISTANCE_CACHE"

	// Keeps expired entries in the distance cache until they are evicted.
	FlagDisableCacheCleanup Flag = "DISABLE_CACHE_CLEANUP"

	// Stops sending stream updates to clients. Queries are still answered.
	FlagDisableStreamUpdates Flag = "DISABLE_STREAM_UPDATES"
)
