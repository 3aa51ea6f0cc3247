package webhook

// Helpers for digging typed values out of the decoded event payload.
// FastSpring payloads are free-form JSON objects; missing or mistyped
// fields yield zero values, and listeners validate what they require.

func mapAt(data map[string]interface{}, path ...string) map[string]interface{} {
	current := data
	for _, key := range path {
		next, ok := current[key].(map[string]interface{})
		if !ok {
			return nil
		}
		current = next
	}
	return current
}

func valueAt(data map[string]interface{}, path ...string) interface{} {
	if len(path) == 0 {
		return nil
	}
	parent := data
	if len(path) > 1 {
		parent = mapAt(data, path[:len(path)-1]...)
	}
	if parent == nil {
		return nil
	}
	return parent[path[len(path)-1]]
}

func stringAt(data map[string]interface{}, path ...string) string {
	s, _ := valueAt(data, path...).(string)
	return s
}

// floatAt returns the numeric value at path. JSON numbers decode to float64.
func floatAt(data map[string]interface{}, path ...string) float64 {
	f, _ := valueAt(data, path...).(float64)
	return f
}

func intAt(data map[string]interface{}, path ...string) int {
	return int(floatAt(data, path...))
}

func int64At(data map[string]interface{}, path ...string) int64 {
	return int64(floatAt(data, path...))
}

func boolAt(data map[string]interface{}, path ...string) bool {
	b, _ := valueAt(data, path...).(bool)
	return b
}

func sliceAt(data map[string]interface{}, path ...string) []interface{} {
	s, _ := valueAt(data, path...).([]interface{})
	return s
}
