package stratumd

import (
	"container/list"
	"net"
	"time"
)

type sourceKey [net.IPv6len]byte

func keyOf(ip net.IP) (k sourceKey) {
	copy(k[:], ip.To16())
	return
}

type sourceEntry struct {
	key  sourceKey
	seen time.Duration
}

// lru maps a source address to the tick it was last answered at, keeping at
// most size sources. The least recently answered source is evicted first.
type lru struct {
	size    int
	order   *list.List
	entries map[sourceKey]*list.Element
}

func newLRU(size int) *lru {
	return &lru{
		size:    size,
		order:   list.New(),
		entries: make(map[sourceKey]*list.Element, size),
	}
}

func (u *lru) Add(ip net.IP, seen time.Duration) {
	k := keyOf(ip)
	if el, ok := u.entries[k]; ok {
		el.Value.(*sourceEntry).seen = seen
		u.order.MoveToFront(el)
		return
	}
	u.entries[k] = u.order.PushFront(&sourceEntry{key: k, seen: seen})
	for u.order.Len() > u.size {
		u.RemoveOldest()
	}
}

func (u *lru) RemoveOldest() {
	el := u.order.Back()
	if el == nil {
		return
	}
	u.order.Remove(el)
	delete(u.entries, el.Value.(*sourceEntry).key)
}

func (u *lru) Get(ip net.IP) (time.Duration, bool) {
	el, ok := u.entries[keyOf(ip)]
	if !ok {
		return 0, false
	}
	return el.Value.(*sourceEntry).seen, true
}

func (u *lru) Len() int {
	return u.order.Len()
}
