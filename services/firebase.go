package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"mockmate/models"
)

// ErrNotFound is returned when a document does not exist.
var ErrNotFound = errors.New("not found")

// FirebaseOptions selects credentials for the Firebase app.
type FirebaseOptions struct {
	CredentialsJSON string
	CredentialsFile string
	ProjectID       string
}

// Firebase holds the clients of the process-wide Firebase app.
type Firebase struct {
	Auth      *auth.Client
	Firestore *firestore.Client
}

var (
	firebaseMu       sync.Mutex
	firebaseInstance *Firebase
	newFirebase      = initFirebase
)

// GetFirebase returns the Firebase clients, initializing the app on first
// use. A failed initialization is not remembered; the next call retries.
func GetFirebase(ctx context.Context, opts FirebaseOptions) (*Firebase, error) {
	firebaseMu.Lock()
	defer firebaseMu.Unlock()

	if firebaseInstance != nil {
		return firebaseInstance, nil
	}
	fb, err := newFirebase(ctx, opts)
	if err != nil {
		return nil, err
	}
	firebaseInstance = fb
	return fb, nil
}

func initFirebase(ctx context.Context, opts FirebaseOptions) (*Firebase, error) {
	var clientOpts []option.ClientOption
	switch {
	case opts.CredentialsJSON != "":
		clientOpts = append(clientOpts, option.WithCredentialsJSON([]byte(opts.CredentialsJSON)))
	case opts.CredentialsFile != "":
		clientOpts = append(clientOpts, option.WithCredentialsFile(opts.CredentialsFile))
	}

	var conf *firebase.Config
	if opts.ProjectID != "" {
		conf = &firebase.Config{ProjectID: opts.ProjectID}
	}

	app, err := firebase.NewApp(ctx, conf, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("init firebase app: %w", err)
	}
	authClient, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("init firebase auth: %w", err)
	}
	db, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("init firestore: %w", err)
	}
	return &Firebase{Auth: authClient, Firestore: db}, nil
}

// Close closes the Firestore client
func (f *Firebase) Close() error {
	if f.Firestore != nil {
		return f.Firestore.Close()
	}
	return nil
}

// Collections names the Firestore collections the store uses.
type Collections struct {
	Users      string
	Interviews string
	Feedback   string
}

// FirestoreStore reads and writes users, interviews and feedback.
type FirestoreStore struct {
	client      *firestore.Client
	collections Collections
}

func NewFirestoreStore(client *firestore.Client, collections Collections) *FirestoreStore {
	return &FirestoreStore{client: client, collections: collections}
}

func (s *FirestoreStore) get(ctx context.Context, collection, id string, dest any) error {
	if id == "" {
		return fmt.Errorf("%s: empty id: %w", collection, ErrNotFound)
	}
	doc, err := s.client.Collection(collection).Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
		}
		return err
	}
	if !doc.Exists() {
		return fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
	}
	return doc.DataTo(dest)
}

// GetUser retrieves a user by its auth uid.
func (s *FirestoreStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := s.get(ctx, s.collections.Users, id, &user); err != nil {
		return nil, err
	}
	user.ID = id
	return &user, nil
}

// SaveUser creates or replaces a user document.
func (s *FirestoreStore) SaveUser(ctx context.Context, user models.User) error {
	if user.ID == "" {
		return errors.New("user ID is required")
	}
	_, err := s.client.Collection(s.collections.Users).Doc(user.ID).Set(ctx, user)
	return err
}

// GetInterview retrieves an interview by its ID.
func (s *FirestoreStore) GetInterview(ctx context.Context, id string) (*models.Interview, error) {
	var interview models.Interview
	if err := s.get(ctx, s.collections.Interviews, id, &interview); err != nil {
		return nil, err
	}
	interview.ID = id
	return &interview, nil
}

// SaveFeedback writes feedback under its ID, replacing earlier feedback with
// the same ID.
func (s *FirestoreStore) SaveFeedback(ctx context.Context, feedback models.Feedback) error {
	if feedback.ID == "" {
		return errors.New("feedback ID is required")
	}
	if feedback.CreatedAt.IsZero() {
		feedback.CreatedAt = time.Now()
	}
	_, err := s.client.Collection(s.collections.Feedback).Doc(feedback.ID).Set(ctx, feedback)
	return err
}

// FeedbackByInterview retrieves the feedback a user got for an interview.
func (s *FirestoreStore) FeedbackByInterview(ctx context.Context, interviewID, userID string) (*models.Feedback, error) {
	if interviewID == "" || userID == "" {
		return nil, errors.New("interview ID and user ID are required")
	}

	query := s.client.Collection(s.collections.Feedback).
		Where("interviewId", "==", interviewID).
		Where("userId", "==", userID).
		Limit(1)
	docs, err := query.Documents(ctx).GetAll()
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("feedback for %s: %w", interviewID, ErrNotFound)
	}

	var feedback models.Feedback
	if err := docs[0].DataTo(&feedback); err != nil {
		return nil, err
	}
	feedback.ID = docs[0].Ref.ID
	return &feedback, nil
}
