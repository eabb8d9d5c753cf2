package infra

import "sync"

// MemoryCursor é o cursor de rodízio do processo. Vale enquanto a instância
// estiver viva; cada instância tem o seu.
type MemoryCursor struct {
	mu sync.Mutex
	v  int
}

func (c *MemoryCursor) Load() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.v
}

func (c *MemoryCursor) Store(v int) {
	c.mu.Lock()
	c.v = v
	c.mu.Unlock()
}
