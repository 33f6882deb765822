package kv

import (
	"bytes"
	"cmp"
	"context"
	"iter"
	"slices"
	"strconv"
	"sync"
)

type memEntry struct {
	value   []byte
	version uint64
}

// Memory keeps everything in process. Used by tests and STORE_DRIVER=memory.
type Memory struct {
	mu      sync.RWMutex
	data    map[string]memEntry
	version uint64
}

var _ Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{data: make(map[string]memEntry)}
}

func formatVersion(v uint64) string { return strconv.FormatUint(v, 10) }

func (m *Memory) Get(ctx context.Context, key Key) (*Entry, error) {
	if err := cmp.Or(ctx.Err(), key.Validate()); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.data[string(key.Bytes())]
	if !ok {
		return nil, nil
	}
	return &Entry{Key: key, Value: slices.Clone(e.value), Version: formatVersion(e.version)}, nil
}

func (m *Memory) Scan(ctx context.Context, prefix Key) iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		if err := cmp.Or(ctx.Err(), prefix.Validate()); err != nil {
			yield(Entry{}, err)
			return
		}
		start, end := prefixRange(prefix)

		// copy matches under the lock, yield after releasing it
		m.mu.RLock()
		var out []Entry
		for k, e := range m.data {
			kb := []byte(k)
			if start != nil && (bytes.Compare(kb, start) < 0 || bytes.Compare(kb, end) >= 0) {
				continue
			}
			out = append(out, Entry{Key: DecodeKey(kb), Value: slices.Clone(e.value), Version: formatVersion(e.version)})
		}
		m.mu.RUnlock()

		slices.SortFunc(out, func(a, b Entry) int { return bytes.Compare(a.Key.Bytes(), b.Key.Bytes()) })
		for _, e := range out {
			if !yield(e, nil) {
				return
			}
		}
	}
}

func (m *Memory) Set(ctx context.Context, key Key, value []byte) error {
	return m.Commit(ctx, NewAtomic().Set(key, value))
}

func (m *Memory) Delete(ctx context.Context, key Key) error {
	return m.Commit(ctx, NewAtomic().Delete(key))
}

func (m *Memory) Commit(ctx context.Context, op *Atomic) error {
	if err := cmp.Or(ctx.Err(), op.validate()); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, c := range op.Checks {
		e, ok := m.data[string(c.Key.Bytes())]
		if c.Version == "" {
			if ok {
				return ErrCheckFailed
			}
			continue
		}
		if !ok || formatVersion(e.version) != c.Version {
			return ErrCheckFailed
		}
	}

	m.version++
	for _, mu := range op.Mutations {
		k := string(mu.Key.Bytes())
		if mu.Delete {
			delete(m.data, k)
			continue
		}
		m.data[k] = memEntry{value: slices.Clone(mu.Value), version: m.version}
	}
	return nil
}

func (m *Memory) Close() error { return nil }
