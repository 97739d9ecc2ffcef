package shared

import (
	"context"
	"net/http"
	"strconv"
)

// Role identifies the capability class of an acting user.
type Role string

const (
	// RoleSales creates and edits orders against warehouse stock.
	RoleSales Role = "sales"
	// RoleDriver sells from per-day stock allocations.
	RoleDriver Role = "driver"
	// RoleManager may delete orders and verify collections.
	RoleManager Role = "manager"
)

// Actor describes the authenticated user driving an operation.
// Authentication itself happens upstream; the gateway forwards identity
// through trusted headers.
type Actor struct {
	ID   int64
	Name string
	Role Role
}

// IsDriver reports whether the actor sells from driver allocations.
func (a Actor) IsDriver() bool {
	return a.Role == RoleDriver
}

type actorContextKey struct{}

// ContextWithActor attaches the actor to the context.
func ContextWithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext retrieves the actor from the context.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(Actor)
	return actor, ok
}

// ActorMiddleware extracts actor identity from gateway headers.
func ActorMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, _ := strconv.ParseInt(r.Header.Get("X-Actor-ID"), 10, 64)
		actor := Actor{
			ID:   id,
			Name: r.Header.Get("X-Actor-Name"),
			Role: Role(r.Header.Get("X-Actor-Role")),
		}
		next.ServeHTTP(w, r.WithContext(ContextWithActor(r.Context(), actor)))
	})
}
