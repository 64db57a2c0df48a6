package mr

import "hash/fnv"

func Hash(value string) uint32 {
	hash := fnv.New32a()
	hash.Write([]byte(value))
	return hash.Sum32()
}

// PartitionFor returns the reduce partition a key belongs to. The mapping is
// deterministic: repeated shuffles of the same keys land in the same
// partitions.
func PartitionFor(key string, numPartitions int) int {
	if numPartitions <= 0 {
		return 0
	}
	return int(Hash(key)) % numPartitions
}
