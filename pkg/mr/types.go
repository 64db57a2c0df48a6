package mr

// KeyValue is a single intermediate or output pair. Key and value contents
// are opaque to the engine; workloads encode whatever they need as strings.
type KeyValue struct {
	Key   string
	Value string
}

// Record is one unit of raw input. Key identifies where the record came from
// (e.g. "file:line") and Value is the record itself. Format-specific parsing
// is the workload's responsibility.
type Record struct {
	Key   string
	Value string
}

// MapFunc transforms one input record into zero or more intermediate pairs.
// It must be safe to invoke again with the same record: the engine re-runs
// map tasks whose earlier attempts were lost.
type MapFunc func(key, value string) ([]KeyValue, error)

// ReduceFunc folds every value observed for a key into one output pair.
// Values arrive in mapper insertion order.
type ReduceFunc func(key string, values []string) (KeyValue, error)
