package metrics

// Pre-defined metrics for the network indexer. All metrics live in
// DefaultRegistry so they are globally accessible without passing a
// registry around.

var (
	// ---- Indexing progress metrics ----

	// ChainHeadLag tracks remaining_blocks as last computed while polling
	// the chain head: how far behind the local head is.
	ChainHeadLag = DefaultRegistry.Gauge("chain_head_lag")
	// BlocksIndexedTotal counts blocks successfully written and announced.
	BlocksIndexedTotal = DefaultRegistry.Counter("blocks_indexed_total")
	// ReorgsDetectedTotal counts fork-base detections that triggered a revert.
	ReorgsDetectedTotal = DefaultRegistry.Counter("reorgs_detected_total")
	// RevertDepth records how many pointer pairs were reverted per reorg.
	RevertDepth = DefaultRegistry.Histogram("revert_depth")

	// ---- Fetch metrics ----

	// BlockFetchErrorsTotal counts adapter errors surfaced while streaming
	// a block range.
	BlockFetchErrorsTotal = DefaultRegistry.Counter("block_fetch_errors_total")
	// BlockFetchLatencyMs records per-block fetch latency.
	BlockFetchLatencyMs = DefaultRegistry.Histogram("block_fetch_latency_ms")

	// BlocksIndexedRate tracks 1-, 5-, and 15-minute moving averages of the
	// blocks-indexed rate, the same way Meter tracks Unix load averages.
	BlocksIndexedRate = NewMeter()
)
