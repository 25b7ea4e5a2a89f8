package middleware

import (
	"context"
	"strings"

	"github.com/labstack/echo/v4"
)

type contextKey string

const (
	ActorHeader            = "X-User"
	ActorKey    contextKey = "actor"

	// AnonymousActor attributes changes made without an X-User header.
	AnonymousActor = "anonymous"
)

// Actor stores the caller named by X-User on the request context. The name
// is only used for last-modified-by attribution.
func Actor() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			actor := strings.TrimSpace(c.Request().Header.Get(ActorHeader))
			if actor == "" {
				return next(c)
			}
			c.Set("actor", actor)
			c.SetRequest(c.Request().WithContext(WithActor(c.Request().Context(), actor)))
			return next(c)
		}
	}
}

func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, ActorKey, actor)
}

func ActorFromContext(ctx context.Context) string {
	if actor, _ := ctx.Value(ActorKey).(string); actor != "" {
		return actor
	}
	return AnonymousActor
}
