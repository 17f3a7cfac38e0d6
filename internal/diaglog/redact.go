package diaglog

const redacted = "[REDACTED]"

// sensitiveKeys are payload keys never written to disk. Spoken text can hold
// anything the user typed.
var sensitiveKeys = map[string]bool{
	"text":     true,
	"password": true,
	"secret":   true,
	"token":    true,
	"auth":     true,
}

// Redact returns a copy of v with the values of sensitive keys replaced.
// Values other than maps and slices are returned unchanged.
func Redact(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, child := range val {
			if sensitiveKeys[k] {
				out[k] = redacted
				continue
			}
			out[k] = Redact(child)
		}
		return out
	case map[string]string:
		out := make(map[string]string, len(val))
		for k, s := range val {
			if sensitiveKeys[k] {
				s = redacted
			}
			out[k] = s
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, elem := range val {
			out[i] = Redact(elem)
		}
		return out
	default:
		return v
	}
}
