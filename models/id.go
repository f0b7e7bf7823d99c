package models

import "sync"

// IDGenerator issues small sequential ids, such as the ids of the streams
// opened on a connection. Released ids are handed out again, lowest first.
type IDGenerator struct {
	mutex    sync.Mutex
	lastID   uint32
	released map[uint32]struct{}
	inUse    int
}

// New returns an unused id.
func (g *IDGenerator) New() uint32 {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	g.inUse++

	if len(g.released) != 0 {
		var lowest uint32
		for id := range g.released {
			if lowest == 0 || id < lowest {
				lowest = id
			}
		}
		delete(g.released, lowest)
		return lowest
	}

	g.lastID++
	return g.lastID
}

// Release marks the given id as unused. Releasing an id that was never issued
// or is already released is a no-op.
func (g *IDGenerator) Release(id uint32) {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	if id == 0 || id > g.lastID {
		return
	}

	if g.released == nil {
		g.released = make(map[uint32]struct{})
	}

	if _, ok := g.released[id]; ok {
		return
	}
	g.released[id] = struct{}{}
	g.inUse--
}

// InUse returns the number of issued ids that were not released.
func (g *IDGenerator) InUse() int {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	return g.inUse
}
