package notify

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"curbside/internal/model"
	"curbside/internal/store"
)

type recordStore struct {
	*store.Memory
	mu       sync.Mutex
	enqueued []store.Reminder
	marks    []markRec
	fails    []string
}
type markRec struct {
	ID      string
	Success bool
	LastErr string
}

func (r *recordStore) EnqueueReminder(ctx context.Context, rem store.Reminder) (string, error) {
	r.mu.Lock()
	r.enqueued = append(r.enqueued, rem)
	r.mu.Unlock()
	return r.Memory.EnqueueReminder(ctx, rem)
}
func (r *recordStore) MarkReminder(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string) error {
	r.mu.Lock()
	r.marks = append(r.marks, markRec{ID: id, Success: success, LastErr: lastError})
	r.mu.Unlock()
	return r.Memory.MarkReminder(ctx, id, success, nextAttemptAt, lastError)
}
func (r *recordStore) FailReminder(ctx context.Context, id string, lastError string) error {
	r.mu.Lock()
	r.fails = append(r.fails, id)
	r.mu.Unlock()
	return r.Memory.FailReminder(ctx, id, lastError)
}

func dueReminder() store.Reminder {
	return store.Reminder{
		UserID: "u1", SessionID: "s1", PushToken: "ExponentPushToken[abc]",
		Platform: "ios", Title: "Parking reminder", Body: "Your parking expires in 15 minutes",
		SendAt: time.Now().UTC().Add(-time.Minute),
	}
}

func TestWorkerProcessOnceSuccess(t *testing.T) {
	var gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.WriteHeader(200)
	}))
	defer srv.Close()

	rs := &recordStore{Memory: store.NewMemory()}
	id, err := rs.EnqueueReminder(context.Background(), dueReminder())
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	var published []string
	w := &Worker{Store: rs, HTTP: srv.Client(), Stop: make(chan struct{}), GatewayURL: srv.URL, MaxAttempts: 3}
	w.Publish = func(sessionID string, data map[string]any) { published = append(published, sessionID) }

	w.processOnce()

	if len(rs.marks) != 1 || !rs.marks[0].Success || rs.marks[0].ID != id {
		t.Fatalf("expected success mark, got %+v", rs.marks)
	}
	if gotBody == "" || !strings.Contains(gotBody, "ExponentPushToken[abc]") || !strings.Contains(gotBody, "expires in 15 minutes") {
		t.Fatalf("push payload = %q", gotBody)
	}
	if len(published) != 1 || published[0] != "s1" {
		t.Fatalf("published = %v", published)
	}
}

func TestWorkerProcessOnceRetriesThenFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(500)
	}))
	defer srv.Close()

	rs := &recordStore{Memory: store.NewMemory()}
	if _, err := rs.EnqueueReminder(context.Background(), dueReminder()); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	w := &Worker{Store: rs, HTTP: srv.Client(), Stop: make(chan struct{}), GatewayURL: srv.URL, MaxAttempts: 2}

	w.processOnce()
	if len(rs.marks) != 1 || rs.marks[0].Success || rs.marks[0].LastErr != "gateway status 500" {
		t.Fatalf("expected failed mark, got %+v", rs.marks)
	}
	if len(rs.fails) != 0 {
		t.Fatalf("failed terminally too early: %v", rs.fails)
	}

	// Backoff pushed the retry out; force it due again.
	due := time.Now().UTC().Add(-time.Second)
	_ = rs.Memory.MarkReminder(context.Background(), rs.marks[0].ID, false, &due, "")

	w.processOnce()
	if len(rs.fails) != 1 {
		t.Fatalf("expected terminal failure after max attempts, got marks=%v fails=%v", rs.marks, rs.fails)
	}
}

func TestSchedulerEnqueuesPerLeadTimeAndDevice(t *testing.T) {
	rs := &recordStore{Memory: store.NewMemory()}
	ctx := context.Background()
	u, _ := rs.CreateUser(ctx, model.User{Email: "a@b.com", Provider: "dev"})
	_, _ = rs.UpsertPushToken(ctx, model.PushToken{UserID: u.ID, Token: "tok-1", Platform: "ios"})
	_, _ = rs.UpsertPushToken(ctx, model.PushToken{UserID: u.ID, Token: "tok-2", Platform: "android"})

	expires := time.Now().UTC().Add(45 * time.Minute)
	sess := model.ParkingSession{ID: "sess-1", UserID: u.ID, Address: "40.7580, -73.9855", ExpiresAt: &expires}

	sched := NewScheduler(rs)
	sched.Schedule(ctx, u.ID, sess)

	// Default lead times are 60/30/15/5; the 60 minute one is already past.
	if len(rs.enqueued) != 6 {
		t.Fatalf("enqueued = %d reminders, want 6 (3 lead times x 2 devices)", len(rs.enqueued))
	}
	for _, rem := range rs.enqueued {
		if rem.SessionID != "sess-1" || rem.SendAt.After(expires) {
			t.Fatalf("bad reminder: %+v", rem)
		}
		if !strings.Contains(rem.Body, "40.7580, -73.9855") {
			t.Fatalf("body missing address: %q", rem.Body)
		}
	}
}

func TestSchedulerSkipsWhenDisabled(t *testing.T) {
	rs := &recordStore{Memory: store.NewMemory()}
	ctx := context.Background()
	u, _ := rs.CreateUser(ctx, model.User{Email: "a@b.com", Provider: "dev"})
	_, _ = rs.UpsertPushToken(ctx, model.PushToken{UserID: u.ID, Token: "tok-1", Platform: "ios"})
	_ = rs.SavePreferences(ctx, u.ID, model.NotificationPreferences{Enabled: false, ReminderTimes: []int{30}})

	expires := time.Now().UTC().Add(2 * time.Hour)
	NewScheduler(rs).Schedule(ctx, u.ID, model.ParkingSession{ID: "s", UserID: u.ID, ExpiresAt: &expires})
	if len(rs.enqueued) != 0 {
		t.Fatalf("enqueued despite disabled prefs: %d", len(rs.enqueued))
	}

	// No expiry, nothing to remind about.
	_ = rs.SavePreferences(ctx, u.ID, model.DefaultPreferences())
	NewScheduler(rs).Schedule(ctx, u.ID, model.ParkingSession{ID: "s2", UserID: u.ID})
	if len(rs.enqueued) != 0 {
		t.Fatalf("enqueued without expiry: %d", len(rs.enqueued))
	}
}
