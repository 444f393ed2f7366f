package pricelogger

// coalesce returns def when v is the zero value of T - otherwise v.
// For interface types a nil v yields def.
func coalesce[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}
