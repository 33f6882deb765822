// Package kv is the ordered key-value store every repository is built on.
//
// Keys are tuples of string parts. Encoded keys sort bytewise, so a scan over a
// prefix returns its children in key order. Every committed write stamps the
// key with a new version; an Atomic commit can be guarded by checks against
// those versions and applies all of its mutations or none of them.
package kv

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
)

var (
	// ErrCheckFailed is returned by Commit when a check no longer holds.
	ErrCheckFailed = errors.New("kv: check failed")

	// ErrInvalidKey is returned for keys that cannot be encoded unambiguously.
	ErrInvalidKey = errors.New("kv: invalid key")
)

const sep = 0x00

// Key is a tuple key. Parts must not contain a NUL byte.
type Key []string

// Bytes encodes the key. Parts are joined with NUL so that
// Key{"a"} sorts before Key{"a", "b"} and Key{"ab"}.
func (k Key) Bytes() []byte {
	var b bytes.Buffer
	for i, p := range k {
		if i > 0 {
			b.WriteByte(sep)
		}
		b.WriteString(p)
	}
	return b.Bytes()
}

func (k Key) String() string { return strings.Join(k, "/") }

// Validate rejects parts holding the separator byte. Such a part would make
// the key encode to the same bytes as a longer, unrelated key.
func (k Key) Validate() error {
	for _, p := range k {
		if strings.IndexByte(p, sep) >= 0 {
			return fmt.Errorf("%w: %q", ErrInvalidKey, k.String())
		}
	}
	return nil
}

// DecodeKey reverses Key.Bytes.
func DecodeKey(b []byte) Key {
	if len(b) == 0 {
		return Key{}
	}
	parts := bytes.Split(b, []byte{sep})
	k := make(Key, len(parts))
	for i, p := range parts {
		k[i] = string(p)
	}
	return k
}

// prefixRange returns the half-open byte range holding every child of p.
// An empty prefix covers the whole keyspace and returns nil bounds.
func prefixRange(p Key) (start, end []byte) {
	if len(p) == 0 {
		return nil, nil
	}
	start = append(p.Bytes(), sep)
	end = append(p.Bytes(), sep+1)
	return start, end
}

// Entry is one stored key with its value and version.
type Entry struct {
	Key     Key
	Value   []byte
	Version string
}

// Store is the storage contract. Implementations must be safe for
// concurrent use.
type Store interface {
	// Get returns nil without error when the key is absent.
	Get(ctx context.Context, key Key) (*Entry, error)
	// Scan yields the children of prefix in key order. The sequence reads a
	// snapshot taken when iteration starts; it is not a live view and may be
	// ranged over again for a fresh read.
	Scan(ctx context.Context, prefix Key) iter.Seq2[Entry, error]
	Set(ctx context.Context, key Key, value []byte) error
	Delete(ctx context.Context, key Key) error
	// Commit applies op all-or-nothing. It returns ErrCheckFailed, with no
	// effect, when any check no longer holds.
	Commit(ctx context.Context, op *Atomic) error
	Close() error
}

// Check asserts the version a key must have at commit time.
// An empty Version asserts the key is absent.
type Check struct {
	Key     Key
	Version string
}

// Mutation is a set, or a delete when Delete is true.
type Mutation struct {
	Key    Key
	Value  []byte
	Delete bool
}

// Atomic collects checks and mutations for a single Commit.
type Atomic struct {
	Checks    []Check
	Mutations []Mutation
}

func NewAtomic() *Atomic { return &Atomic{} }

func (a *Atomic) Check(key Key, version string) *Atomic {
	a.Checks = append(a.Checks, Check{Key: key, Version: version})
	return a
}

func (a *Atomic) Set(key Key, value []byte) *Atomic {
	a.Mutations = append(a.Mutations, Mutation{Key: key, Value: value})
	return a
}

func (a *Atomic) Delete(key Key) *Atomic {
	a.Mutations = append(a.Mutations, Mutation{Key: key, Delete: true})
	return a
}

func (a *Atomic) validate() error {
	for _, c := range a.Checks {
		if err := c.Key.Validate(); err != nil {
			return err
		}
	}
	for _, m := range a.Mutations {
		if err := m.Key.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// mustBeAbsent lists encoded keys checked for absence, used by backends that
// rely on a unique constraint to close the gap between check and insert.
func (a *Atomic) mustBeAbsent() map[string]bool {
	out := make(map[string]bool)
	for _, c := range a.Checks {
		if c.Version == "" {
			out[string(c.Key.Bytes())] = true
		}
	}
	return out
}
