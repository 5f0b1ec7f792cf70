package shared

import "context"

type actorKey struct{}

// WithActor stamps the acting user's id on the context. Non-positive ids are
// ignored so anonymous calls keep the zero actor.
func WithActor(ctx context.Context, userID int64) context.Context {
	if userID <= 0 {
		return ctx
	}
	return context.WithValue(ctx, actorKey{}, userID)
}

// ActorFrom returns the acting user's id stamped on the context, or zero when
// the call carries no actor.
func ActorFrom(ctx context.Context) int64 {
	id, _ := ctx.Value(actorKey{}).(int64)
	return id
}
