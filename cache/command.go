package cache

import "sync"

type text struct {
	value string
	err   error
	ready chan struct{}
}

// CommandTextCache caches generated SQL by request key; failures are not kept
type CommandTextCache struct {
	texts sync.Map // map[string]*text
}

func NewCommandTextCache() *CommandTextCache {
	return &CommandTextCache{}
}

// Get returns the text cached for key, building it on a miss
func (c *CommandTextCache) Get(key string, build func() (string, error)) (string, error) {
	t := &text{ready: make(chan struct{})}
	if v, loaded := c.texts.LoadOrStore(key, t); loaded {
		cached := v.(*text)
		<-cached.ready
		return cached.value, cached.err
	}

	func() {
		defer close(t.ready)
		t.value, t.err = build()
	}()
	if t.err != nil {
		c.texts.CompareAndDelete(key, t)
	}
	return t.value, t.err
}

// Flush drops every cached text
func (c *CommandTextCache) Flush() {
	c.texts.Range(func(key, _ interface{}) bool {
		c.texts.Delete(key)
		return true
	})
}
