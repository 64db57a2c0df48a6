// Package shuffle redistributes promoted map output across reduce partitions
// and groups values by key.
package shuffle

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/jocic-m/mrengine/pkg/mr"
)

// Group is one reduce key with every value emitted for it, in mapper
// insertion order.
type Group struct {
	Key    string
	Values []string
}

// Shuffle assigns every pair in runs to hash(key) mod numPartitions and
// groups values per key within each partition. Runs are consumed in map
// task order and keys are sorted within a partition, so shuffling the same
// promoted attempts twice yields identical output.
func Shuffle(runs [][]mr.KeyValue, numPartitions int) ([][]Group, error) {
	if numPartitions <= 0 {
		return nil, &mr.InvalidInputError{
			Reason: fmt.Sprintf("reduce partition count must be positive, got %d", numPartitions),
		}
	}

	buckets := make([][]mr.KeyValue, numPartitions)
	for _, run := range runs {
		for _, kv := range run {
			p := mr.PartitionFor(kv.Key, numPartitions)
			buckets[p] = append(buckets[p], kv)
		}
	}

	partitions := make([][]Group, numPartitions)
	for p, bucket := range buckets {
		// Stable sort keeps mapper insertion order among equal keys.
		slices.SortStableFunc(bucket, func(left, right mr.KeyValue) int {
			return cmp.Compare(left.Key, right.Key)
		})
		partitions[p] = groupSorted(bucket)
	}
	return partitions, nil
}

func groupSorted(bucket []mr.KeyValue) []Group {
	var groups []Group

	i := 0
	for i < len(bucket) {
		key := bucket[i].Key
		values := []string{}

		for i < len(bucket) && bucket[i].Key == key {
			values = append(values, bucket[i].Value)
			i++
		}

		groups = append(groups, Group{Key: key, Values: values})
	}

	return groups
}
