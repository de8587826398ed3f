package catalog

import (
	"context"
	"time"

	"github.com/openobserve/corelake/internal/logx"
)

// queryHooks satisfies sqlhooks.Hooks, timing every statement the way the
// teacher's internal/repository/hooks.go does for its job repository.
type queryHooks struct{}

type queryTimingKey struct{}

func (h *queryHooks) Before(ctx context.Context, query string, args ...interface{}) (context.Context, error) {
	logx.Debugf("catalog: query %s %q", query, args)
	return context.WithValue(ctx, queryTimingKey{}, time.Now()), nil
}

func (h *queryHooks) After(ctx context.Context, query string, args ...interface{}) (context.Context, error) {
	if begin, ok := ctx.Value(queryTimingKey{}).(time.Time); ok {
		logx.Debugf("catalog: took %s", time.Since(begin))
	}
	return ctx, nil
}
