package cache

import (
	"container/list"
	"context"
	"sync"
	"time"
)

const defaultMaxEntries = 1000

// Memory is an in-process LRU with TTL. Safe for concurrent use.
type Memory struct {
	mu      sync.Mutex
	max     int
	items   map[string]*list.Element
	order   *list.List
	nowFunc func() time.Time
}

type entry struct {
	key       string
	value     []byte
	expiresAt time.Time
}

// NewMemory returns an LRU holding at most maxEntries values.
func NewMemory(maxEntries int) *Memory {
	if maxEntries <= 0 {
		maxEntries = defaultMaxEntries
	}
	return &Memory{
		max:     maxEntries,
		items:   make(map[string]*list.Element),
		order:   list.New(),
		nowFunc: time.Now,
	}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	elem, ok := m.items[key]
	if !ok {
		return nil, nil
	}
	e := elem.Value.(*entry)
	if !e.expiresAt.IsZero() && m.nowFunc().After(e.expiresAt) {
		m.remove(elem)
		return nil, nil
	}
	m.order.MoveToFront(elem)
	return e.value, nil
}

// Set stores value. A non-positive ttl never expires.
func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	var expires time.Time
	if ttl > 0 {
		expires = m.nowFunc().Add(ttl)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if elem, ok := m.items[key]; ok {
		e := elem.Value.(*entry)
		e.value = value
		e.expiresAt = expires
		m.order.MoveToFront(elem)
		return nil
	}
	m.items[key] = m.order.PushFront(&entry{key: key, value: value, expiresAt: expires})
	for m.order.Len() > m.max {
		m.remove(m.order.Back())
	}
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if elem, ok := m.items[key]; ok {
		m.remove(elem)
	}
	return nil
}

func (m *Memory) Ping(context.Context) error { return nil }

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = make(map[string]*list.Element)
	m.order.Init()
	return nil
}

// Len reports the number of stored entries, expired or not.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.order.Len()
}

func (m *Memory) remove(elem *list.Element) {
	m.order.Remove(elem)
	delete(m.items, elem.Value.(*entry).key)
}
