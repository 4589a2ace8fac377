package domain

import "context"

// Renderer receives the current view after every session state transition.
// channel identifies the session the view belongs to.
type Renderer interface {
	Render(ctx context.Context, channel string, view View)
}
