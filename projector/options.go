package projector

import "log/slog"

// Option configures a Projector instance.
type Option[C any] func(*Projector[C])

// WithMiddleware registers handler middleware. Middlewares are executed in registration order,
// the first registered being the outermost.
func WithMiddleware[C any](mw ...Middleware[C]) Option[C] {
	return func(p *Projector[C]) { p.mw = append(p.mw, mw...) }
}

// WithLogger sets the logger used for debug output. A nil logger disables logging.
func WithLogger[C any](logger *slog.Logger) Option[C] {
	return func(p *Projector[C]) {
		if logger != nil {
			p.logger = logger
		}
	}
}
