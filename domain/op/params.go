package op

// Params holds recipe-supplied op arguments. Values come from YAML decoding,
// so numbers may arrive as int or float64 and nested blocks as
// map[string]any.
type Params map[string]any

// String returns the string parameter or def when absent.
func (p Params) String(key, def string) string {
	if v, ok := p[key].(string); ok {
		return v
	}
	return def
}

// Bool returns the bool parameter or def when absent.
func (p Params) Bool(key string, def bool) bool {
	if v, ok := p[key].(bool); ok {
		return v
	}
	return def
}

// Int returns the int parameter or def when absent. YAML integers may decode
// as int or float64 depending on the source.
func (p Params) Int(key string, def int) int {
	switch v := p[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return def
}

// Float64 returns the float parameter or def when absent.
func (p Params) Float64(key string, def float64) float64 {
	switch v := p[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return def
}

// Map returns a nested parameter block, or an empty Params when absent.
func (p Params) Map(key string) Params {
	switch v := p[key].(type) {
	case map[string]any:
		return Params(v)
	case Params:
		return v
	}
	return Params{}
}
