package utils

// ToStringSlice keeps the string elements of a decoded JSON array, in order,
// and drops the rest.
func ToStringSlice(slice []any) []string {
	out := make([]string, 0, len(slice))
	for _, v := range slice {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
