package job

import "sync/atomic"

// ActiveCounter tracks in-flight worker count. It is advisory only, used
// for keep-alive signaling and introspection, never for admission control.
type ActiveCounter struct {
	n atomic.Int64
}

func (c *ActiveCounter) Register()   { c.n.Add(1) }
func (c *ActiveCounter) Unregister() { c.n.Add(-1) }
func (c *ActiveCounter) Count() int64 {
	return c.n.Load()
}
