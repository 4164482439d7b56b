package transport

import "context"

// Channel binds an adapter to a fixed chat target and fixed send
// options, giving the engine its delivery collaborator.
type Channel struct {
	adapter Adapter
	target  ChatTarget
	opt     SendOptions
}

func NewChannel(adapter Adapter, target ChatTarget, opt SendOptions) *Channel {
	return &Channel{adapter: adapter, target: target, opt: opt}
}

func (c *Channel) Deliver(ctx context.Context, text string) error {
	opt := c.opt
	_, err := c.adapter.SendText(ctx, c.target, text, &opt)
	return err
}
