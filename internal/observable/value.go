// Copyright (c) CurioSwitch (choko@curioswitch.org)
// SPDX-License-Identifier: BUSL-1.1

// Package observable holds state that watchers are notified about on change.
package observable

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/juju/pubsub/v2"
)

var topics atomic.Uint64

// Value is a concurrency-safe variable. Every Set is delivered to watchers in
// order on the hub's delivery goroutines.
type Value[T any] struct {
	hub   *pubsub.SimpleHub
	topic string

	mu sync.RWMutex
	v  T
}

// NewValue returns a Value publishing on hub. A nil hub gets a private one.
func NewValue[T any](hub *pubsub.SimpleHub, name string, initial T) *Value[T] {
	if hub == nil {
		hub = pubsub.NewSimpleHub(nil)
	}
	return &Value[T]{
		hub:   hub,
		topic: fmt.Sprintf("%s#%d", name, topics.Add(1)),
		v:     initial,
	}
}

func (v *Value[T]) Get() T {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.v
}

func (v *Value[T]) Set(x T) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.v = x
	// Publishing under the lock keeps delivery order equal to Set order.
	_ = v.hub.Publish(v.topic, x)
}

// Update replaces the value with fn applied to the current one.
func (v *Value[T]) Update(fn func(T) T) T {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.v = fn(v.v)
	_ = v.hub.Publish(v.topic, v.v)
	return v.v
}

// Watch calls fn with every value set after Watch returns. The returned func
// stops delivery.
func (v *Value[T]) Watch(fn func(T)) func() {
	return v.hub.Subscribe(v.topic, func(_ string, data interface{}) {
		if x, ok := data.(T); ok {
			fn(x)
		}
	})
}
