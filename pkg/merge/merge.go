// Package merge implements the deep-merge used to combine node outputs.
//
// Maps are merged recursively with last-writer-wins for scalar fields. Arrays
// holding record collections (every item an object exposing an "id" field) are
// merged by record identifier: items sharing an identifier are deep-merged,
// items with a new identifier are appended. All other arrays are concatenated
// in base-then-overlay order. This avoids duplicate-record explosion when two
// upstream branches enrich the same underlying record set.
package merge

import "strconv"

// Merge deep-merges overlay into base and returns a new map. Neither input is
// modified.
func Merge(base, overlay map[string]any) map[string]any {
	if base == nil && overlay == nil {
		return map[string]any{}
	}

	result := copyMap(base)

	for key, overlayValue := range overlay {
		baseValue, exists := result[key]
		if !exists {
			result[key] = copyValue(overlayValue)

			continue
		}

		result[key] = mergeValues(baseValue, overlayValue)
	}

	return result
}

// MergeAll merges the given maps left to right.
func MergeAll(maps ...map[string]any) map[string]any {
	result := map[string]any{}

	for _, m := range maps {
		result = Merge(result, m)
	}

	return result
}

func mergeValues(base, overlay any) any {
	baseMap, baseIsMap := base.(map[string]any)
	overlayMap, overlayIsMap := overlay.(map[string]any)

	if baseIsMap && overlayIsMap {
		return Merge(baseMap, overlayMap)
	}

	baseSlice, baseIsSlice := base.([]any)
	overlaySlice, overlayIsSlice := overlay.([]any)

	if baseIsSlice && overlayIsSlice {
		return mergeSlices(baseSlice, overlaySlice)
	}

	// Scalars and mismatched kinds: last writer wins.
	return copyValue(overlay)
}

func mergeSlices(base, overlay []any) []any {
	if allRecords(base) && allRecords(overlay) {
		return mergeRecordSlices(base, overlay)
	}

	merged := make([]any, 0, len(base)+len(overlay))

	for _, item := range base {
		merged = append(merged, copyValue(item))
	}

	for _, item := range overlay {
		merged = append(merged, copyValue(item))
	}

	return merged
}

// mergeRecordSlices merges two record collections by identifier. Items lacking
// an identifier are always appended, never merged.
func mergeRecordSlices(base, overlay []any) []any {
	merged := make([]any, 0, len(base)+len(overlay))
	position := make(map[string]int)

	for _, item := range base {
		copied := copyValue(item)

		if id, ok := recordID(item); ok {
			position[id] = len(merged)
		}

		merged = append(merged, copied)
	}

	for _, item := range overlay {
		id, ok := recordID(item)
		if !ok {
			merged = append(merged, copyValue(item))

			continue
		}

		if idx, seen := position[id]; seen {
			existing, _ := merged[idx].(map[string]any)
			incoming, _ := item.(map[string]any)
			merged[idx] = Merge(existing, incoming)

			continue
		}

		position[id] = len(merged)
		merged = append(merged, copyValue(item))
	}

	return merged
}

// allRecords reports whether every item in the slice is an object carrying an
// identifier. Empty slices qualify so they combine cleanly with record sets.
func allRecords(items []any) bool {
	for _, item := range items {
		if _, ok := recordID(item); !ok {
			return false
		}
	}

	return true
}

// recordID extracts a comparable identifier from a record-shaped value. The
// "id" field may be a string or a number; other shapes have no identifier.
func recordID(item any) (string, bool) {
	record, ok := item.(map[string]any)
	if !ok {
		return "", false
	}

	raw, ok := record["id"]
	if !ok {
		return "", false
	}

	switch id := raw.(type) {
	case string:
		return id, id != ""
	case int:
		return intKey(int64(id)), true
	case int64:
		return intKey(id), true
	case float64:
		return floatKey(id), true
	default:
		return "", false
	}
}

func intKey(id int64) string {
	return "n:" + strconv.FormatInt(id, 10)
}

func floatKey(id float64) string {
	// JSON numbers decode as float64; integral values share a key with ints.
	if id == float64(int64(id)) {
		return intKey(int64(id))
	}

	return "f:" + strconv.FormatFloat(id, 'g', -1, 64)
}

func copyMap(m map[string]any) map[string]any {
	copied := make(map[string]any, len(m))
	for key, value := range m {
		copied[key] = copyValue(value)
	}

	return copied
}

func copyValue(value any) any {
	switch v := value.(type) {
	case map[string]any:
		return copyMap(v)
	case []any:
		copied := make([]any, len(v))
		for i, item := range v {
			copied[i] = copyValue(item)
		}

		return copied
	default:
		return v
	}
}
