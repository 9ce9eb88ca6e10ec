package metrics

import "sort"

// BucketRow is one flattened (dimension, key) count.
type BucketRow struct {
	Dimension string
	Key       string
	Count     int
}

// FlattenBuckets converts the rows of one dimension into a slice sorted by
// descending count, then by key for stability.
func FlattenBuckets(buckets map[string]map[string]int, dimension string) []BucketRow {
	keys := buckets[dimension]
	if len(keys) == 0 {
		return nil
	}
	rows := make([]BucketRow, 0, len(keys))
	for key, count := range keys {
		rows = append(rows, BucketRow{Dimension: dimension, Key: key, Count: count})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Count == rows[j].Count {
			return rows[i].Key < rows[j].Key
		}
		return rows[i].Count > rows[j].Count
	})
	return rows
}
