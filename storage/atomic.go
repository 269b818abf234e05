package storage

import "sync/atomic"

// atomicBool is a tiny wrapper kept local to storage so cache.go and
// freelist.go don't need to import sync/atomic's raw int32 dance at every
// call site.
type atomicBool struct{ v atomic.Bool }

func (b *atomicBool) set(val bool) { b.v.Store(val) }
func (b *atomicBool) get() bool    { return b.v.Load() }

type atomicInt64 struct{ v atomic.Int64 }

func (i *atomicInt64) add(delta int64) { i.v.Add(delta) }
func (i *atomicInt64) load() int64     { return i.v.Load() }
