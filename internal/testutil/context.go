package testutil

import "context"

type payloadKey struct{}

func withPayload(ctx context.Context, payload map[string]any) context.Context {
	return context.WithValue(ctx, payloadKey{}, payload)
}

func payloadFrom(ctx context.Context) map[string]any {
	p, _ := ctx.Value(payloadKey{}).(map[string]any)
	return p
}
