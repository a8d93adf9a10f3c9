package matchmaking

import (
	"errors"
	"testing"
	"time"

	"github.com/mossy-p/stranger-signaling/internal/models"
)

func entry(id string, c Criteria) *QueueEntry {
	return &QueueEntry{ConnectionID: id, Criteria: c, EnqueuedAt: time.Now()}
}

func TestQueueEnqueueDequeue(t *testing.T) {
	q := NewQueue()
	if err := q.Enqueue(entry("a", Criteria{})); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	if err := q.Enqueue(entry("a", Criteria{})); !errors.Is(err, ErrAlreadyQueued) {
		t.Errorf("duplicate Enqueue() error = %v, want ErrAlreadyQueued", err)
	}
	if !q.Dequeue("a") {
		t.Error("Dequeue() = false for queued id")
	}
	if q.Dequeue("a") {
		t.Error("second Dequeue() = true, want no-op")
	}
	if q.Dequeue("missing") {
		t.Error("Dequeue() of absent id = true")
	}
	if q.Len() != 0 {
		t.Errorf("Len() = %d, want 0", q.Len())
	}
}

func TestQueueTryMatchOldestFirst(t *testing.T) {
	q := NewQueue()
	wantsFemale := Criteria{Filters: models.Filters{Gender: models.GenderFemale}, Profile: models.Profile{Gender: models.GenderMale}}
	female := Criteria{Filters: models.Filters{Gender: models.GenderAny}, Profile: models.Profile{Gender: models.GenderFemale}}

	for _, id := range []string{"a", "b", "c"} {
		if err := q.Enqueue(entry(id, wantsFemale)); err != nil {
			t.Fatal(err)
		}
		if _, ok := q.TryMatch(id); ok {
			t.Fatalf("TryMatch(%s) paired incompatible searchers", id)
		}
	}

	if err := q.Enqueue(entry("f", female)); err != nil {
		t.Fatal(err)
	}
	got, ok := q.TryMatch("f")
	if !ok || got.ConnectionID != "a" {
		t.Fatalf("TryMatch(f) = %v, %v; want a", got, ok)
	}
	if q.Contains("a") || q.Contains("f") {
		t.Error("matched entries still queued")
	}

	var order []string
	for _, e := range q.Entries() {
		order = append(order, e.ConnectionID)
	}
	if len(order) != 2 || order[0] != "b" || order[1] != "c" {
		t.Errorf("Entries() = %v, want [b c]", order)
	}
}

func TestQueueSkipsLastPeer(t *testing.T) {
	q := NewQueue()
	a := entry("a", Criteria{})
	a.LastPeer = "b"
	if err := q.Enqueue(a); err != nil {
		t.Fatal(err)
	}
	if err := q.Enqueue(entry("b", Criteria{})); err != nil {
		t.Fatal(err)
	}
	if _, ok := q.TryMatch("b"); ok {
		t.Fatal("TryMatch paired a searcher with its previous peer")
	}
	if err := q.Enqueue(entry("c", Criteria{})); err != nil {
		t.Fatal(err)
	}
	got, ok := q.TryMatch("c")
	if !ok || got.ConnectionID != "a" {
		t.Errorf("TryMatch(c) = %v, %v; want a", got, ok)
	}
}

func TestQueueTryMatchUnknown(t *testing.T) {
	q := NewQueue()
	if _, ok := q.TryMatch("nobody"); ok {
		t.Error("TryMatch() of absent id succeeded")
	}
}

func TestQueueForgetPeer(t *testing.T) {
	q := NewQueue()
	a := entry("a", Criteria{})
	a.LastPeer = "b"
	if err := q.Enqueue(a); err != nil {
		t.Fatal(err)
	}
	if err := q.Enqueue(entry("b", Criteria{})); err != nil {
		t.Fatal(err)
	}
	q.ForgetPeer("b")
	got, ok := q.TryMatch("b")
	if !ok || got.ConnectionID != "a" {
		t.Errorf("TryMatch(b) after ForgetPeer = %v, %v; want a", got, ok)
	}
}
