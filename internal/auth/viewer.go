package auth

import "context"

type viewerKey struct{}

// WithViewer records the authenticated username on ctx.
func WithViewer(ctx context.Context, username string) context.Context {
	return context.WithValue(ctx, viewerKey{}, username)
}

// ViewerFrom returns the username stored by WithViewer.
func ViewerFrom(ctx context.Context) (string, bool) {
	u, ok := ctx.Value(viewerKey{}).(string)
	return u, ok && u != ""
}
