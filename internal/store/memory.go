package store

import (
    "context"
    "sort"
    "sync"
    "time"

    "github.com/google/uuid"

    "curbside/internal/model"
)

// Memory is a simple in-memory store used when no DATABASE_URL is set.
type Memory struct {
    mu        sync.Mutex
    users     map[string]model.User              // id -> user
    byProv    map[string]string                  // provider+"|"+subject -> user id
    locs      map[string]model.SavedLocation     // id -> location
    locsUser  map[string][]string                // user -> location ids
    sessions  map[string]model.ParkingSession    // id -> session
    sessUser  map[string][]string                // user -> session ids, oldest first
    tokens    map[string][]model.PushToken       // user -> tokens
    prefs     map[string]model.NotificationPreferences
    reminders map[string]*memReminder            // id -> reminder state
}

func NewMemory() *Memory {
    return &Memory{
        users:     map[string]model.User{},
        byProv:    map[string]string{},
        locs:      map[string]model.SavedLocation{},
        locsUser:  map[string][]string{},
        sessions:  map[string]model.ParkingSession{},
        sessUser:  map[string][]string{},
        tokens:    map[string][]model.PushToken{},
        prefs:     map[string]model.NotificationPreferences{},
        reminders: map[string]*memReminder{},
    }
}

// memReminder augments Reminder with scheduling state.
type memReminder struct {
    Reminder
    NextAttemptAt time.Time
    LastError     string
}

func provKey(provider, subject string) string { return provider + "|" + subject }

func (m *Memory) CreateUser(ctx context.Context, u model.User) (model.User, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    if u.ID == "" { u.ID = uuid.New().String() }
    now := time.Now().UTC()
    u.CreatedAt = now
    u.UpdatedAt = now
    m.users[u.ID] = u
    if u.AppleID != "" { m.byProv[provKey("apple", u.AppleID)] = u.ID }
    if u.GoogleID != "" { m.byProv[provKey("google", u.GoogleID)] = u.ID }
    return u, nil
}

func (m *Memory) GetUser(ctx context.Context, id string) (model.User, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    u, ok := m.users[id]
    if !ok { return model.User{}, ErrNotFound }
    return u, nil
}

func (m *Memory) GetUserByEmail(ctx context.Context, email string) (model.User, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    for _, u := range m.users {
        if u.Email != "" && u.Email == email { return u, nil }
    }
    return model.User{}, ErrNotFound
}

func (m *Memory) GetUserByProvider(ctx context.Context, provider, subject string) (model.User, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    id, ok := m.byProv[provKey(provider, subject)]
    if !ok { return model.User{}, ErrNotFound }
    return m.users[id], nil
}

func (m *Memory) UpdateUser(ctx context.Context, u model.User) (model.User, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    cur, ok := m.users[u.ID]
    if !ok { return model.User{}, ErrNotFound }
    u.CreatedAt = cur.CreatedAt
    u.UpdatedAt = time.Now().UTC()
    m.users[u.ID] = u
    if u.AppleID != "" { m.byProv[provKey("apple", u.AppleID)] = u.ID }
    if u.GoogleID != "" { m.byProv[provKey("google", u.GoogleID)] = u.ID }
    return u, nil
}

func (m *Memory) DeleteUser(ctx context.Context, id string) error {
    m.mu.Lock(); defer m.mu.Unlock()
    u, ok := m.users[id]
    if !ok { return ErrNotFound }
    delete(m.users, id)
    if u.AppleID != "" { delete(m.byProv, provKey("apple", u.AppleID)) }
    if u.GoogleID != "" { delete(m.byProv, provKey("google", u.GoogleID)) }
    for _, lid := range m.locsUser[id] { delete(m.locs, lid) }
    delete(m.locsUser, id)
    for _, sid := range m.sessUser[id] { delete(m.sessions, sid) }
    delete(m.sessUser, id)
    delete(m.tokens, id)
    delete(m.prefs, id)
    for rid, r := range m.reminders {
        if r.UserID == id { delete(m.reminders, rid) }
    }
    return nil
}

func (m *Memory) ListSavedLocations(ctx context.Context, userID string) ([]model.SavedLocation, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    out := []model.SavedLocation{}
    for _, id := range m.locsUser[userID] {
        out = append(out, m.locs[id])
    }
    return out, nil
}

func (m *Memory) CreateSavedLocation(ctx context.Context, loc model.SavedLocation) (model.SavedLocation, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    loc.ID = uuid.New().String()
    loc.CreatedAt = time.Now().UTC()
    m.locs[loc.ID] = loc
    m.locsUser[loc.UserID] = append(m.locsUser[loc.UserID], loc.ID)
    return loc, nil
}

func (m *Memory) DeleteSavedLocation(ctx context.Context, userID, id string) error {
    m.mu.Lock(); defer m.mu.Unlock()
    loc, ok := m.locs[id]
    if !ok || loc.UserID != userID { return ErrNotFound }
    delete(m.locs, id)
    ids := m.locsUser[userID]
    for i := range ids {
        if ids[i] == id { m.locsUser[userID] = append(ids[:i], ids[i+1:]...); break }
    }
    return nil
}

func (m *Memory) GetActiveSession(ctx context.Context, userID string) (model.ParkingSession, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    ids := m.sessUser[userID]
    for i := len(ids) - 1; i >= 0; i-- {
        s := m.sessions[ids[i]]
        if s.Active() { return s, nil }
    }
    return model.ParkingSession{}, ErrNotFound
}

func (m *Memory) GetSession(ctx context.Context, userID, id string) (model.ParkingSession, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    s, ok := m.sessions[id]
    if !ok || s.UserID != userID { return model.ParkingSession{}, ErrNotFound }
    return s, nil
}

func (m *Memory) CreateSession(ctx context.Context, s model.ParkingSession) (model.ParkingSession, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    s.ID = uuid.New().String()
    now := time.Now().UTC()
    s.CreatedAt = now
    s.UpdatedAt = now
    m.sessions[s.ID] = s
    m.sessUser[s.UserID] = append(m.sessUser[s.UserID], s.ID)
    return s, nil
}

func (m *Memory) UpdateSession(ctx context.Context, s model.ParkingSession) (model.ParkingSession, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    cur, ok := m.sessions[s.ID]
    if !ok { return model.ParkingSession{}, ErrNotFound }
    s.CreatedAt = cur.CreatedAt
    s.UpdatedAt = time.Now().UTC()
    m.sessions[s.ID] = s
    return s, nil
}

func (m *Memory) ListSessionHistory(ctx context.Context, userID string, page, pageSize int) ([]model.ParkingSession, int, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    if page <= 0 { page = 1 }
    if pageSize <= 0 || pageSize > 100 { pageSize = 20 }
    all := []model.ParkingSession{}
    for _, id := range m.sessUser[userID] {
        s := m.sessions[id]
        if !s.Active() { all = append(all, s) }
    }
    // newest first
    sort.Slice(all, func(i, j int) bool { return all[i].StartedAt.After(all[j].StartedAt) })
    total := len(all)
    start := (page - 1) * pageSize
    if start > total { start = total }
    end := start + pageSize
    if end > total { end = total }
    items := append([]model.ParkingSession{}, all[start:end]...)
    return items, total, nil
}

func (m *Memory) UpsertPushToken(ctx context.Context, t model.PushToken) (model.PushToken, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    now := time.Now().UTC()
    // A device token belongs to whoever signed in last on that device.
    for uid, list := range m.tokens {
        for i := range list {
            if list[i].Token != t.Token { continue }
            if uid == t.UserID {
                list[i].Platform = t.Platform
                list[i].UpdatedAt = now
                return list[i], nil
            }
            moved := list[i]
            m.tokens[uid] = append(list[:i], list[i+1:]...)
            moved.UserID = t.UserID
            moved.Platform = t.Platform
            moved.UpdatedAt = now
            m.tokens[t.UserID] = append(m.tokens[t.UserID], moved)
            return moved, nil
        }
    }
    t.ID = uuid.New().String()
    t.CreatedAt = now
    t.UpdatedAt = now
    m.tokens[t.UserID] = append(m.tokens[t.UserID], t)
    return t, nil
}

func (m *Memory) DeletePushToken(ctx context.Context, userID, token string) error {
    m.mu.Lock(); defer m.mu.Unlock()
    list := m.tokens[userID]
    for i := range list {
        if list[i].Token == token {
            m.tokens[userID] = append(list[:i], list[i+1:]...)
            return nil
        }
    }
    return ErrNotFound
}

func (m *Memory) ListPushTokens(ctx context.Context, userID string) ([]model.PushToken, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    return append([]model.PushToken{}, m.tokens[userID]...), nil
}

func (m *Memory) GetPreferences(ctx context.Context, userID string) (model.NotificationPreferences, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    p, ok := m.prefs[userID]
    if !ok { return model.DefaultPreferences(), nil }
    return p, nil
}

func (m *Memory) SavePreferences(ctx context.Context, userID string, p model.NotificationPreferences) error {
    m.mu.Lock(); defer m.mu.Unlock()
    m.prefs[userID] = p
    return nil
}

func (m *Memory) EnqueueReminder(ctx context.Context, r Reminder) (string, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    r.ID = uuid.New().String()
    if r.Status == "" { r.Status = "pending" }
    m.reminders[r.ID] = &memReminder{Reminder: r, NextAttemptAt: r.SendAt}
    return r.ID, nil
}

func (m *Memory) CancelRemindersForSession(ctx context.Context, sessionID string) error {
    m.mu.Lock(); defer m.mu.Unlock()
    for id, r := range m.reminders {
        if r.SessionID == sessionID && r.Status == "pending" { delete(m.reminders, id) }
    }
    return nil
}

func (m *Memory) FetchDueReminders(ctx context.Context, limit int) ([]Reminder, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    if limit <= 0 { limit = 50 }
    now := time.Now().UTC()
    out := []Reminder{}
    for _, r := range m.reminders {
        if r.Status != "pending" { continue }
        if r.NextAttemptAt.After(now) { continue }
        out = append(out, r.Reminder)
        if len(out) >= limit { break }
    }
    return out, nil
}

func (m *Memory) MarkReminder(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string) error {
    m.mu.Lock(); defer m.mu.Unlock()
    r, ok := m.reminders[id]
    if !ok { return ErrNotFound }
    r.Attempts++
    r.LastError = lastError
    if success {
        r.Status = "sent"
        return nil
    }
    if nextAttemptAt != nil { r.NextAttemptAt = *nextAttemptAt }
    return nil
}

func (m *Memory) FailReminder(ctx context.Context, id string, lastError string) error {
    m.mu.Lock(); defer m.mu.Unlock()
    r, ok := m.reminders[id]
    if !ok { return ErrNotFound }
    r.Status = "failed"
    r.LastError = lastError
    return nil
}
