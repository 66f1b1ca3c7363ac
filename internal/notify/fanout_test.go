package notify

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/servimatch/servimatch/internal/domain"
)

type fakeInbox struct {
	mu      sync.Mutex
	items   map[uuid.UUID]*domain.Notification
	failFor map[uuid.UUID]bool
}

func newFakeInbox() *fakeInbox {
	return &fakeInbox{
		items:   make(map[uuid.UUID]*domain.Notification),
		failFor: make(map[uuid.UUID]bool),
	}
}

func (f *fakeInbox) Create(_ context.Context, n *domain.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFor[n.RecipientID] {
		return errors.New("insert failed")
	}
	cp := *n
	f.items[n.ID] = &cp
	return nil
}

func (f *fakeInbox) ListByRecipient(_ context.Context, recipientID uuid.UUID) ([]domain.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Notification
	for _, n := range f.items {
		if n.RecipientID == recipientID {
			out = append(out, *n)
		}
	}
	return out, nil
}

func (f *fakeInbox) UnreadCount(_ context.Context, recipientID uuid.UUID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var count int64
	for _, n := range f.items {
		if n.RecipientID == recipientID && !n.Read {
			count++
		}
	}
	return count, nil
}

func (f *fakeInbox) MarkRead(_ context.Context, id, recipientID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.items[id]
	if !ok || n.RecipientID != recipientID {
		return domain.ErrNotificationNotFound
	}
	n.Read = true
	return nil
}

func (f *fakeInbox) MarkAllRead(_ context.Context, recipientID uuid.UUID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var count int64
	for _, n := range f.items {
		if n.RecipientID == recipientID && !n.Read {
			n.Read = true
			count++
		}
	}
	return count, nil
}

func (f *fakeInbox) Delete(_ context.Context, id, recipientID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.items[id]
	if !ok || n.RecipientID != recipientID {
		return domain.ErrNotificationNotFound
	}
	delete(f.items, id)
	return nil
}

func (f *fakeInbox) DeleteAll(_ context.Context, recipientID uuid.UUID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var count int64
	for id, n := range f.items {
		if n.RecipientID == recipientID {
			delete(f.items, id)
			count++
		}
	}
	return count, nil
}

type fakeRealtime struct {
	mu     sync.Mutex
	events map[string][]domain.Event
}

func (f *fakeRealtime) Publish(key string, e domain.Event) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.events == nil {
		f.events = make(map[string][]domain.Event)
	}
	f.events[key] = append(f.events[key], e)
	return 1
}

func (f *fakeRealtime) published(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events[key])
}

type fakePush struct {
	mu       sync.Mutex
	attempts int
	fail     bool
}

func (f *fakePush) Deliver(_ context.Context, _ uuid.UUID, _, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts++
	if f.fail {
		return errors.New("no registered device")
	}
	return nil
}

func TestNotifyPersistsBeforeDelivery(t *testing.T) {
	inbox := newFakeInbox()
	rt := &fakeRealtime{}
	svc := NewService(inbox, rt, &fakePush{}, zerolog.Nop())

	recipient := uuid.New()
	n, err := svc.Notify(context.Background(), recipient, "Offer selected", "The client chose your offer")
	if err != nil {
		t.Fatalf("Notify: %v", err)
	}

	stored, err := inbox.ListByRecipient(context.Background(), recipient)
	if err != nil || len(stored) != 1 {
		t.Fatalf("inbox = %+v, %v; want one record", stored, err)
	}
	if stored[0].ID != n.ID || stored[0].Read {
		t.Fatalf("stored record = %+v", stored[0])
	}
	if got := rt.published(domain.UserChannel(recipient)); got != 1 {
		t.Fatalf("realtime events = %d, want 1", got)
	}
}

func TestNotifySurvivesPushFailure(t *testing.T) {
	inbox := newFakeInbox()
	transport := &fakePush{fail: true}
	svc := NewService(inbox, &fakeRealtime{}, transport, zerolog.Nop())

	recipient := uuid.New()
	if _, err := svc.Notify(context.Background(), recipient, "t", "b"); err != nil {
		t.Fatalf("Notify with failing push: %v", err)
	}
	if transport.attempts != 1 {
		t.Fatalf("push attempts = %d, want 1", transport.attempts)
	}
	// The inbox record is still there for the next read.
	count, _ := inbox.UnreadCount(context.Background(), recipient)
	if count != 1 {
		t.Fatalf("unread = %d, want 1", count)
	}
}

func TestNotifyStoreFailure(t *testing.T) {
	inbox := newFakeInbox()
	recipient := uuid.New()
	inbox.failFor[recipient] = true
	rt := &fakeRealtime{}
	svc := NewService(inbox, rt, &fakePush{}, zerolog.Nop())

	if _, err := svc.Notify(context.Background(), recipient, "t", "b"); err == nil {
		t.Fatal("Notify succeeded despite insert failure")
	}
	// Nothing was published for a record that does not exist.
	if got := rt.published(domain.UserChannel(recipient)); got != 0 {
		t.Fatalf("realtime events = %d, want 0", got)
	}
}

func TestNotifyAllContinuesPastFailures(t *testing.T) {
	inbox := newFakeInbox()
	ok1, bad, ok2 := uuid.New(), uuid.New(), uuid.New()
	inbox.failFor[bad] = true
	svc := NewService(inbox, &fakeRealtime{}, &fakePush{}, zerolog.Nop())

	delivered := svc.NotifyAll(context.Background(), []uuid.UUID{ok1, bad, ok2}, "New service request", "details")
	if delivered != 2 {
		t.Fatalf("delivered = %d, want 2", delivered)
	}
	for _, id := range []uuid.UUID{ok1, ok2} {
		if got, _ := inbox.UnreadCount(context.Background(), id); got != 1 {
			t.Fatalf("recipient %s unread = %d, want 1", id, got)
		}
	}
}
