package kv

import (
	"reflect"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

func TestSetGetDelete(t *testing.T) {
	s := New(clockwork.NewFakeClock())

	if _, ok := s.Get("missing"); ok {
		t.Fatal("expected missing key to be absent")
	}

	s.Set("a", "1", 0)
	if v, ok := s.Get("a"); !ok || v != "1" {
		t.Fatalf("Get(a) = %q, %v; want 1, true", v, ok)
	}
	if !s.Exists("a") {
		t.Error("Exists(a) = false")
	}

	s.Delete("a")
	if s.Exists("a") {
		t.Error("key still exists after Delete")
	}
}

func TestTTLExpiry(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s := New(clock)

	s.Set("session", "x", 10*time.Second)
	clock.Advance(9 * time.Second)
	if !s.Exists("session") {
		t.Fatal("key expired before its ttl")
	}

	clock.Advance(time.Second)
	if s.Exists("session") {
		t.Fatal("key still present after ttl elapsed")
	}
}

func TestExpireAndPurge(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s := New(clock)

	s.Set("keep", "1", 0)
	s.Set("drop", "2", 0)
	if !s.Expire("drop", time.Second) {
		t.Fatal("Expire on existing key returned false")
	}
	if s.Expire("nope", time.Second) {
		t.Fatal("Expire on missing key returned true")
	}

	clock.Advance(2 * time.Second)
	if n := s.PurgeExpired(); n != 1 {
		t.Errorf("PurgeExpired removed %d keys, want 1", n)
	}
	if !s.Exists("keep") {
		t.Error("non-expiring key was purged")
	}
}

func TestHashOperations(t *testing.T) {
	s := New(clockwork.NewFakeClock())

	s.HSet("room:1", "status", "waiting")
	s.HSet("room:1", "creator", "alice")
	s.HSet("room:10", "status", "ready")

	if v, ok := s.HGet("room:1", "status"); !ok || v != "waiting" {
		t.Fatalf("HGet = %q, %v", v, ok)
	}

	want := map[string]string{"status": "waiting", "creator": "alice"}
	if got := s.HGetAll("room:1"); !reflect.DeepEqual(got, want) {
		t.Errorf("HGetAll = %v, want %v", got, want)
	}
	if got := s.HGetAll("room:2"); len(got) != 0 {
		t.Errorf("HGetAll on empty hash = %v", got)
	}
}

func TestExpireHash(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s := New(clock)

	s.HSet("room:1", "status", "waiting")
	s.HSet("room:1", "creator", "alice")
	s.ExpireHash("room:1", time.Minute)

	clock.Advance(time.Minute)
	if got := s.HGetAll("room:1"); len(got) != 0 {
		t.Errorf("expired hash still has fields: %v", got)
	}
}

func TestListOperations(t *testing.T) {
	s := New(clockwork.NewFakeClock())

	s.RPush("l", "b", "c")
	s.LPush("l", "a")
	s.RPush("l", "d")

	tests := []struct {
		start, stop int
		want        []string
	}{
		{0, -1, []string{"a", "b", "c", "d"}},
		{1, 2, []string{"b", "c"}},
		{2, 10, []string{"c", "d"}},
		{5, -1, []string{}},
	}
	for _, tt := range tests {
		if got := s.LRange("l", tt.start, tt.stop); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("LRange(%d, %d) = %v, want %v", tt.start, tt.stop, got, tt.want)
		}
	}

	if n := s.LRem("l", "b"); n != 1 {
		t.Errorf("LRem removed %d, want 1", n)
	}
	if got := s.LRange("l", 0, -1); !reflect.DeepEqual(got, []string{"a", "c", "d"}) {
		t.Errorf("after LRem = %v", got)
	}
}

func TestLPushKeepsArgumentOrder(t *testing.T) {
	s := New(clockwork.NewFakeClock())
	s.RPush("l", "z")
	s.LPush("l", "x", "y")

	if got := s.LRange("l", 0, -1); !reflect.DeepEqual(got, []string{"x", "y", "z"}) {
		t.Errorf("LRange = %v", got)
	}
}

func TestPublishSubscribe(t *testing.T) {
	s := New(clockwork.NewFakeClock())

	if n := s.Publish("room:1", "early"); n != 0 {
		t.Fatalf("Publish with no subscribers delivered %d", n)
	}

	sub := s.Subscribe("room:1")
	other := s.Subscribe("room:2")
	defer other.Close()

	if n := s.Publish("room:1", "hello"); n != 1 {
		t.Fatalf("Publish delivered %d, want 1", n)
	}

	select {
	case msg := <-sub.C:
		if msg != "hello" {
			t.Errorf("got %q, want hello", msg)
		}
	default:
		t.Fatal("subscriber did not receive message")
	}

	select {
	case msg := <-other.C:
		t.Errorf("unrelated channel received %q", msg)
	default:
	}

	sub.Close()
	sub.Close()
	if _, ok := <-sub.C; ok {
		t.Error("channel not closed after Close")
	}
	if n := s.Publish("room:1", "late"); n != 0 {
		t.Errorf("closed subscription still received, delivered = %d", n)
	}
}
