package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Memory is an in-process Bus with the same delivery contract as the AMQP
// implementation: each subscription owns an independent queue, messages
// arrive in publish order within one queue, and a handler error drops the
// message to the dead-letter sink without redelivery. Nothing is ordered
// across two different queues.
type Memory struct {
	mu   sync.RWMutex
	subs []*memorySub
	dead DeadLetter

	inflight sync.WaitGroup
}

type memorySub struct {
	queue    string
	patterns []string
	ch       chan Delivery
}

const memoryQueueDepth = 256

func NewMemory(dead DeadLetter) *Memory {
	return &Memory{dead: dead}
}

func (b *Memory) Publish(_ context.Context, topic string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("could not marshal payload for %s: %w", topic, err)
	}

	b.mu.RLock()
	subs := append([]*memorySub(nil), b.subs...)
	b.mu.RUnlock()

	for _, sub := range subs {
		if !matchesAny(sub.patterns, topic) {
			continue
		}
		b.inflight.Add(1)
		sub.ch <- Delivery{Topic: topic, Body: body}
	}

	return nil
}

func (b *Memory) Subscribe(ctx context.Context, queue string, patterns []string, h Handler) error {
	sub := &memorySub{
		queue:    queue,
		patterns: patterns,
		ch:       make(chan Delivery, memoryQueueDepth),
	}

	b.mu.Lock()
	b.subs = append(b.subs, sub)
	b.mu.Unlock()

	// One consumer loop per queue: messages of a queue are processed one at
	// a time, queues of different subscribers run in parallel.
	go func() {
		for {
			select {
			case <-ctx.Done():
				b.drain(sub)
				return
			case d := <-sub.ch:
				if err := h(ctx, d); err != nil {
					b.dead.Dropped(ctx, sub.queue, d, err)
				}
				b.inflight.Done()
			}
		}
	}()

	return nil
}

// drain discards deliveries still buffered when a subscription's context is
// cancelled. Every buffered delivery was counted on Publish, so each one
// must be marked done or a later Flush would block forever. The sub is
// removed first so no new deliveries land in its queue mid-drain.
func (b *Memory) drain(sub *memorySub) {
	b.mu.Lock()
	for i, s := range b.subs {
		if s == sub {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			break
		}
	}
	b.mu.Unlock()

	for {
		select {
		case <-sub.ch:
			b.inflight.Done()
		default:
			return
		}
	}
}

// Flush blocks until every published message, including messages published
// by handlers while draining, has been handled.
func (b *Memory) Flush() {
	b.inflight.Wait()
}

func matchesAny(patterns []string, topic string) bool {
	for _, p := range patterns {
		if Match(p, topic) {
			return true
		}
	}
	return false
}
