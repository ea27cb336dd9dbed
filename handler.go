package foundry

// Handler is a plain transformation step from an input to an output.
// VisitorHandler.Handler adapts visitor-based transforms into this shape so
// they compose with hand-written steps.
type Handler[I, O any] func(I) (O, error)

// Identity returns a handler that passes its input through unchanged.
func Identity[T any]() Handler[T, T] {
	return func(v T) (T, error) { return v, nil }
}
