package services

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"mockmate/models"
)

func resetFirebase(t *testing.T, init func(context.Context, FirebaseOptions) (*Firebase, error)) {
	t.Helper()

	firebaseMu.Lock()
	prev := newFirebase
	firebaseInstance = nil
	newFirebase = init
	firebaseMu.Unlock()

	t.Cleanup(func() {
		firebaseMu.Lock()
		firebaseInstance = nil
		newFirebase = prev
		firebaseMu.Unlock()
	})
}

func TestGetFirebase_InitializesOnce(t *testing.T) {
	var calls atomic.Int32
	resetFirebase(t, func(context.Context, FirebaseOptions) (*Firebase, error) {
		calls.Add(1)
		return &Firebase{}, nil
	})

	var wg sync.WaitGroup
	results := make([]*Firebase, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			fb, err := GetFirebase(context.Background(), FirebaseOptions{ProjectID: "demo"})
			if err != nil {
				t.Errorf("GetFirebase: %v", err)
			}
			results[i] = fb
		}(i)
	}
	wg.Wait()

	if calls.Load() != 1 {
		t.Fatalf("init ran %d times", calls.Load())
	}
	for _, fb := range results {
		if fb != results[0] {
			t.Fatalf("GetFirebase returned different instances")
		}
	}
}

func TestGetFirebase_RetriesAfterFailure(t *testing.T) {
	var calls atomic.Int32
	resetFirebase(t, func(context.Context, FirebaseOptions) (*Firebase, error) {
		if calls.Add(1) == 1 {
			return nil, errors.New("no credentials")
		}
		return &Firebase{}, nil
	})

	if _, err := GetFirebase(context.Background(), FirebaseOptions{}); err == nil {
		t.Fatalf("expected first init to fail")
	}
	fb, err := GetFirebase(context.Background(), FirebaseOptions{})
	if err != nil || fb == nil {
		t.Fatalf("second GetFirebase = %v, %v", fb, err)
	}
	if calls.Load() != 2 {
		t.Fatalf("init ran %d times, want 2", calls.Load())
	}
}

// TestFirestoreStore runs against the Firestore emulator when
// FIRESTORE_EMULATOR_HOST is set.
func TestFirestoreStore(t *testing.T) {
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}

	ctx := context.Background()
	fb, err := initFirebase(ctx, FirebaseOptions{ProjectID: "mockmate-test"})
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	defer fb.Close()

	suffix := time.Now().Format("150405.000000")
	store := NewFirestoreStore(fb.Firestore, Collections{
		Users:      "users-" + suffix,
		Interviews: "interviews-" + suffix,
		Feedback:   "feedback-" + suffix,
	})

	if err := store.SaveUser(ctx, models.User{ID: "u1", Name: "Ada", Email: "ada@example.com"}); err != nil {
		t.Fatalf("SaveUser: %v", err)
	}
	user, err := store.GetUser(ctx, "u1")
	if err != nil || user.Name != "Ada" || user.ID != "u1" {
		t.Fatalf("GetUser = %+v, %v", user, err)
	}
	if _, err := store.GetUser(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetUser(missing) err=%v", err)
	}
	if _, err := store.GetInterview(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetInterview(missing) err=%v", err)
	}

	feedback := models.Feedback{ID: "fb1", InterviewID: "int-1", UserID: "u1", TotalScore: 60}
	if err := store.SaveFeedback(ctx, feedback); err != nil {
		t.Fatalf("SaveFeedback: %v", err)
	}
	feedback.TotalScore = 75
	if err := store.SaveFeedback(ctx, feedback); err != nil {
		t.Fatalf("SaveFeedback again: %v", err)
	}

	got, err := store.FeedbackByInterview(ctx, "int-1", "u1")
	if err != nil {
		t.Fatalf("FeedbackByInterview: %v", err)
	}
	if got.ID != "fb1" || got.TotalScore != 75 {
		t.Fatalf("feedback=%+v", got)
	}
	if _, err := store.FeedbackByInterview(ctx, "int-2", "u1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("FeedbackByInterview(int-2) err=%v", err)
	}
}
