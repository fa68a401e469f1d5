package shared

import "context"

type actorContextKey struct{}

// DefaultActor is used when no operator name travels with the context.
const DefaultActor = "System"

// ContextWithActor stores the operator display name in context.
func ContextWithActor(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, actorContextKey{}, name)
}

// ActorFromContext extracts the operator display name from context.
func ActorFromContext(ctx context.Context) string {
	name, _ := ctx.Value(actorContextKey{}).(string)
	if name == "" {
		return DefaultActor
	}
	return name
}
