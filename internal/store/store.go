package store

import (
    "context"
    "errors"
    "time"

    "curbside/internal/model"
)

// Store is the persistence interface used by the API server.
type Store interface {
    // Users
    CreateUser(ctx context.Context, u model.User) (model.User, error)
    GetUser(ctx context.Context, id string) (model.User, error)
    GetUserByEmail(ctx context.Context, email string) (model.User, error)
    GetUserByProvider(ctx context.Context, provider, subject string) (model.User, error)
    UpdateUser(ctx context.Context, u model.User) (model.User, error)
    DeleteUser(ctx context.Context, id string) error

    // Saved locations
    ListSavedLocations(ctx context.Context, userID string) ([]model.SavedLocation, error)
    CreateSavedLocation(ctx context.Context, loc model.SavedLocation) (model.SavedLocation, error)
    DeleteSavedLocation(ctx context.Context, userID, id string) error

    // Parking sessions
    GetActiveSession(ctx context.Context, userID string) (model.ParkingSession, error)
    GetSession(ctx context.Context, userID, id string) (model.ParkingSession, error)
    CreateSession(ctx context.Context, s model.ParkingSession) (model.ParkingSession, error)
    UpdateSession(ctx context.Context, s model.ParkingSession) (model.ParkingSession, error)
    ListSessionHistory(ctx context.Context, userID string, page, pageSize int) ([]model.ParkingSession, int, error)

    // Push tokens
    UpsertPushToken(ctx context.Context, t model.PushToken) (model.PushToken, error)
    DeletePushToken(ctx context.Context, userID, token string) error
    ListPushTokens(ctx context.Context, userID string) ([]model.PushToken, error)

    // Notification preferences
    GetPreferences(ctx context.Context, userID string) (model.NotificationPreferences, error)
    SavePreferences(ctx context.Context, userID string, p model.NotificationPreferences) error

    // Reminder queue
    EnqueueReminder(ctx context.Context, r Reminder) (string, error)
    CancelRemindersForSession(ctx context.Context, sessionID string) error
    FetchDueReminders(ctx context.Context, limit int) ([]Reminder, error)
    MarkReminder(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string) error
    FailReminder(ctx context.Context, id string, lastError string) error
}

var ErrNotFound = errors.New("not found")

// Reminder is one queued push notification tied to a session expiry.
type Reminder struct {
    ID        string
    UserID    string
    SessionID string
    PushToken string
    Platform  string
    Title     string
    Body      string
    SendAt    time.Time
    Status    string // pending, sent, failed
    Attempts  int
}
