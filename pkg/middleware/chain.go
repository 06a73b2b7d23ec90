package middleware

// Chain composes wrappers so the first one given is the outermost.
func Chain[H any](wrappers ...func(H) H) func(H) H {
	return func(h H) H {
		for i := len(wrappers) - 1; i >= 0; i-- {
			h = wrappers[i](h)
		}
		return h
	}
}
