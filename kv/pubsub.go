package kv

import "log"

// Subscription receives messages published to one channel.
type Subscription struct {
	C       <-chan string
	ch      chan string
	channel string
	store   *Store
}

// Subscribe registers for messages published to channel from now on.
// Callers must Close the subscription when done.
func (s *Store) Subscribe(channel string) *Subscription {
	ch := make(chan string, subscriberBuffer)
	sub := &Subscription{C: ch, ch: ch, channel: channel, store: s}

	s.mu.Lock()
	subs, ok := s.subscribers[channel]
	if !ok {
		subs = make(map[*Subscription]struct{})
		s.subscribers[channel] = subs
	}
	subs[sub] = struct{}{}
	s.mu.Unlock()

	return sub
}

// Publish delivers message to current subscribers and returns how many
// received it. Subscribers with a full buffer miss the message.
func (s *Store) Publish(channel, message string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	delivered := 0
	for sub := range s.subscribers[channel] {
		select {
		case sub.ch <- message:
			delivered++
		default:
			log.Printf("kv: subscriber on %s is full, dropping message", channel)
		}
	}
	return delivered
}

func (sub *Subscription) Close() {
	s := sub.store
	s.mu.Lock()
	defer s.mu.Unlock()

	subs, ok := s.subscribers[sub.channel]
	if !ok {
		return
	}
	if _, ok := subs[sub]; !ok {
		return
	}
	delete(subs, sub)
	close(sub.ch)
	if len(subs) == 0 {
		delete(s.subscribers, sub.channel)
	}
}
