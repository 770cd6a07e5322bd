package dedupe

// defaultMaxSize bounds the guard's memory; old entries fall off FIFO.
const defaultMaxSize = 50000

// Option applies a configuration option to the match guard.
type Option func(*matchGuard)

// WithMaxSize bounds the number of tracked match IDs. Zero or negative
// makes the guard unbounded.
func WithMaxSize(n int) Option {
	return func(g *matchGuard) {
		g.maxSize = n
	}
}
