package wardrobe

import "sync"

// Collection is the caller's in-memory view of the user's items. Every
// mutation swaps in a new slice, so a slice returned by Items is never
// modified afterwards.
type Collection struct {
	mu    sync.RWMutex
	items []Item
}

// NewCollection creates a collection seeded with items.
func NewCollection(items ...Item) *Collection {
	seed := make([]Item, len(items))
	copy(seed, items)
	return &Collection{items: seed}
}

// Items returns the current snapshot.
func (c *Collection) Items() []Item {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.items
}

// Get returns the item with the given id.
func (c *Collection) Get(id string) (Item, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, it := range c.items {
		if it.ID == id {
			return it, true
		}
	}
	return Item{}, false
}

// Append adds a newly created item.
func (c *Collection) Append(it Item) {
	c.mu.Lock()
	defer c.mu.Unlock()
	next := make([]Item, len(c.items), len(c.items)+1)
	copy(next, c.items)
	c.items = append(next, it)
}

// Replace swaps the item with the same id. Unknown ids are ignored.
func (c *Collection) Replace(it Item) {
	c.mu.Lock()
	defer c.mu.Unlock()
	next := make([]Item, len(c.items))
	for i, existing := range c.items {
		if existing.ID == it.ID {
			next[i] = it
		} else {
			next[i] = existing
		}
	}
	c.items = next
}

// Remove filters out the item with the given id.
func (c *Collection) Remove(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	next := make([]Item, 0, len(c.items))
	for _, existing := range c.items {
		if existing.ID != id {
			next = append(next, existing)
		}
	}
	c.items = next
}
