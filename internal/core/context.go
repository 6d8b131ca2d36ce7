package core

import "context"

type contextKey string

const ctxKeyOrigin contextKey = "import_origin"

// Origin describes who started an import. Source is "http" or "cli"; IP and
// UserAgent are only known for HTTP callers.
type Origin struct {
	Source    string
	IP        string
	UserAgent string
}

// WithOrigin attaches o to ctx for logging.
func WithOrigin(ctx context.Context, o Origin) context.Context {
	return context.WithValue(ctx, ctxKeyOrigin, o)
}

// OriginFrom extracts the origin from ctx. The zero Origin is returned when
// none was attached.
func OriginFrom(ctx context.Context) Origin {
	if o, ok := ctx.Value(ctxKeyOrigin).(Origin); ok {
		return o
	}
	return Origin{}
}

// logArgs returns the non-empty origin fields as slog key/value pairs.
func (o Origin) logArgs() []any {
	var args []any
	if o.Source != "" {
		args = append(args, "source", o.Source)
	}
	if o.IP != "" {
		args = append(args, "ip", o.IP)
	}
	if o.UserAgent != "" {
		args = append(args, "user_agent", o.UserAgent)
	}
	return args
}
