package store

import (
    "context"
    "database/sql"
    "encoding/json"
    "errors"
    "os"
    "path/filepath"
    "sort"
    "strings"
    "time"

    "github.com/google/uuid"
    _ "github.com/jackc/pgx/v5/stdlib"

    "curbside/internal/model"
)

type Postgres struct {
    db *sql.DB
}

func NewPostgres(dsn string) (*Postgres, error) {
    db, err := sql.Open("pgx", dsn)
    if err != nil {
        return nil, err
    }
    if err := db.Ping(); err != nil {
        return nil, err
    }
    return &Postgres{db: db}, nil
}

func (p *Postgres) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

// MigrateDir applies every .sql file in dir in lexical order.
func (p *Postgres) MigrateDir(dir string) error {
    entries, err := os.ReadDir(dir)
    if err != nil { return err }
    names := []string{}
    for _, e := range entries {
        if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") { names = append(names, e.Name()) }
    }
    sort.Strings(names)
    for _, n := range names {
        b, err := os.ReadFile(filepath.Join(dir, n))
        if err != nil { return err }
        if _, err := p.db.ExecContext(context.Background(), string(b)); err != nil { return err }
    }
    return nil
}

func (p *Postgres) CreateUser(ctx context.Context, u model.User) (model.User, error) {
    if u.ID == "" { u.ID = uuid.New().String() }
    now := time.Now().UTC()
    u.CreatedAt = now
    u.UpdatedAt = now
    _, err := p.db.ExecContext(ctx, `INSERT INTO users (id, email, name, avatar_url, apple_id, google_id, provider, created_at, updated_at) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
        u.ID, u.Email, nullIfEmpty(u.Name), nullIfEmpty(u.AvatarURL), nullIfEmpty(u.AppleID), nullIfEmpty(u.GoogleID), u.Provider, u.CreatedAt, u.UpdatedAt)
    if err != nil { return model.User{}, err }
    return u, nil
}

const userCols = `id::text, email, name, avatar_url, apple_id, google_id, provider, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (model.User, error) {
    var u model.User
    var name, avatar, appleID, googleID sql.NullString
    if err := row.Scan(&u.ID, &u.Email, &name, &avatar, &appleID, &googleID, &u.Provider, &u.CreatedAt, &u.UpdatedAt); err != nil {
        if errors.Is(err, sql.ErrNoRows) { return model.User{}, ErrNotFound }
        return model.User{}, err
    }
    u.Name = name.String
    u.AvatarURL = avatar.String
    u.AppleID = appleID.String
    u.GoogleID = googleID.String
    return u, nil
}

func (p *Postgres) GetUser(ctx context.Context, id string) (model.User, error) {
    return scanUser(p.db.QueryRowContext(ctx, `SELECT `+userCols+` FROM users WHERE id=$1`, id))
}

func (p *Postgres) GetUserByEmail(ctx context.Context, email string) (model.User, error) {
    return scanUser(p.db.QueryRowContext(ctx, `SELECT `+userCols+` FROM users WHERE email=$1 LIMIT 1`, email))
}

func (p *Postgres) GetUserByProvider(ctx context.Context, provider, subject string) (model.User, error) {
    col := "google_id"
    if provider == "apple" { col = "apple_id" }
    return scanUser(p.db.QueryRowContext(ctx, `SELECT `+userCols+` FROM users WHERE `+col+`=$1`, subject))
}

func (p *Postgres) UpdateUser(ctx context.Context, u model.User) (model.User, error) {
    u.UpdatedAt = time.Now().UTC()
    res, err := p.db.ExecContext(ctx, `UPDATE users SET email=$2, name=$3, avatar_url=$4, apple_id=$5, google_id=$6, updated_at=$7 WHERE id=$1`,
        u.ID, u.Email, nullIfEmpty(u.Name), nullIfEmpty(u.AvatarURL), nullIfEmpty(u.AppleID), nullIfEmpty(u.GoogleID), u.UpdatedAt)
    if err != nil { return model.User{}, err }
    if n, _ := res.RowsAffected(); n == 0 { return model.User{}, ErrNotFound }
    return p.GetUser(ctx, u.ID)
}

func (p *Postgres) DeleteUser(ctx context.Context, id string) error {
    res, err := p.db.ExecContext(ctx, `DELETE FROM users WHERE id=$1`, id)
    if err != nil { return err }
    if n, _ := res.RowsAffected(); n == 0 { return ErrNotFound }
    return nil
}

func (p *Postgres) ListSavedLocations(ctx context.Context, userID string) ([]model.SavedLocation, error) {
    rows, err := p.db.QueryContext(ctx, `SELECT id::text, user_id::text, name, lat, lng, address, created_at FROM saved_locations WHERE user_id=$1 ORDER BY created_at`, userID)
    if err != nil { return nil, err }
    defer rows.Close()
    out := []model.SavedLocation{}
    for rows.Next() {
        var l model.SavedLocation
        var addr sql.NullString
        if err := rows.Scan(&l.ID, &l.UserID, &l.Name, &l.Latitude, &l.Longitude, &addr, &l.CreatedAt); err != nil { return nil, err }
        l.Address = addr.String
        out = append(out, l)
    }
    return out, rows.Err()
}

func (p *Postgres) CreateSavedLocation(ctx context.Context, loc model.SavedLocation) (model.SavedLocation, error) {
    loc.ID = uuid.New().String()
    loc.CreatedAt = time.Now().UTC()
    _, err := p.db.ExecContext(ctx, `INSERT INTO saved_locations (id, user_id, name, lat, lng, address, created_at) VALUES ($1,$2,$3,$4,$5,$6,$7)`,
        loc.ID, loc.UserID, loc.Name, loc.Latitude, loc.Longitude, nullIfEmpty(loc.Address), loc.CreatedAt)
    if err != nil { return model.SavedLocation{}, err }
    return loc, nil
}

func (p *Postgres) DeleteSavedLocation(ctx context.Context, userID, id string) error {
    res, err := p.db.ExecContext(ctx, `DELETE FROM saved_locations WHERE id=$1 AND user_id=$2`, id, userID)
    if err != nil { return err }
    if n, _ := res.RowsAffected(); n == 0 { return ErrNotFound }
    return nil
}

const sessionCols = `id::text, user_id::text, lat, lng, address, zone_code, borough, status, status_reason, parking_type, rules, started_at, ended_at, expires_at, payment_status, payment_method, paid_duration_min, payment_expires_at, detection_method, created_at, updated_at`

func scanSession(row interface{ Scan(...any) error }) (model.ParkingSession, error) {
    var s model.ParkingSession
    var addr, zone, borough, payMethod, detect sql.NullString
    var rulesJSON []byte
    var paidMin sql.NullInt64
    var endedAt, expiresAt, payExpiresAt sql.NullTime
    err := row.Scan(&s.ID, &s.UserID, &s.Latitude, &s.Longitude, &addr, &zone, &borough,
        &s.Status, &s.StatusReason, &s.ParkingType, &rulesJSON,
        &s.StartedAt, &endedAt, &expiresAt,
        &s.PaymentStatus, &payMethod, &paidMin, &payExpiresAt,
        &detect, &s.CreatedAt, &s.UpdatedAt)
    if err != nil {
        if errors.Is(err, sql.ErrNoRows) { return model.ParkingSession{}, ErrNotFound }
        return model.ParkingSession{}, err
    }
    s.Address = addr.String
    s.ZoneCode = zone.String
    s.Borough = borough.String
    s.PaymentMethod = payMethod.String
    s.PaidDurationMin = int(paidMin.Int64)
    s.DetectionMethod = detect.String
    if endedAt.Valid { t := endedAt.Time; s.EndedAt = &t }
    if expiresAt.Valid { t := expiresAt.Time; s.ExpiresAt = &t }
    if payExpiresAt.Valid { t := payExpiresAt.Time; s.PaymentExpiresAt = &t }
    s.Rules = []model.Rule{}
    if len(rulesJSON) > 0 {
        _ = json.Unmarshal(rulesJSON, &s.Rules)
    }
    return s, nil
}

func rulesToJSON(rules []model.Rule) []byte {
    if rules == nil { rules = []model.Rule{} }
    b, _ := json.Marshal(rules)
    return b
}

func (p *Postgres) GetActiveSession(ctx context.Context, userID string) (model.ParkingSession, error) {
    return scanSession(p.db.QueryRowContext(ctx, `SELECT `+sessionCols+` FROM parking_sessions WHERE user_id=$1 AND ended_at IS NULL ORDER BY started_at DESC LIMIT 1`, userID))
}

func (p *Postgres) GetSession(ctx context.Context, userID, id string) (model.ParkingSession, error) {
    return scanSession(p.db.QueryRowContext(ctx, `SELECT `+sessionCols+` FROM parking_sessions WHERE id=$1 AND user_id=$2`, id, userID))
}

func (p *Postgres) CreateSession(ctx context.Context, s model.ParkingSession) (model.ParkingSession, error) {
    s.ID = uuid.New().String()
    now := time.Now().UTC()
    s.CreatedAt = now
    s.UpdatedAt = now
    _, err := p.db.ExecContext(ctx, `INSERT INTO parking_sessions (id, user_id, lat, lng, address, zone_code, borough, status, status_reason, parking_type, rules, started_at, ended_at, expires_at, payment_status, payment_method, paid_duration_min, payment_expires_at, detection_method, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21)`,
        s.ID, s.UserID, s.Latitude, s.Longitude, nullIfEmpty(s.Address), nullIfEmpty(s.ZoneCode), nullIfEmpty(s.Borough),
        string(s.Status), s.StatusReason, string(s.ParkingType), rulesToJSON(s.Rules),
        s.StartedAt, s.EndedAt, s.ExpiresAt,
        s.PaymentStatus, nullIfEmpty(s.PaymentMethod), s.PaidDurationMin, s.PaymentExpiresAt,
        nullIfEmpty(s.DetectionMethod), s.CreatedAt, s.UpdatedAt)
    if err != nil { return model.ParkingSession{}, err }
    return s, nil
}

func (p *Postgres) UpdateSession(ctx context.Context, s model.ParkingSession) (model.ParkingSession, error) {
    s.UpdatedAt = time.Now().UTC()
    res, err := p.db.ExecContext(ctx, `UPDATE parking_sessions SET lat=$2, lng=$3, address=$4, zone_code=$5, borough=$6, status=$7, status_reason=$8, parking_type=$9, rules=$10, ended_at=$11, expires_at=$12, payment_status=$13, payment_method=$14, paid_duration_min=$15, payment_expires_at=$16, updated_at=$17 WHERE id=$1`,
        s.ID, s.Latitude, s.Longitude, nullIfEmpty(s.Address), nullIfEmpty(s.ZoneCode), nullIfEmpty(s.Borough),
        string(s.Status), s.StatusReason, string(s.ParkingType), rulesToJSON(s.Rules),
        s.EndedAt, s.ExpiresAt,
        s.PaymentStatus, nullIfEmpty(s.PaymentMethod), s.PaidDurationMin, s.PaymentExpiresAt, s.UpdatedAt)
    if err != nil { return model.ParkingSession{}, err }
    if n, _ := res.RowsAffected(); n == 0 { return model.ParkingSession{}, ErrNotFound }
    return p.GetSession(ctx, s.UserID, s.ID)
}

func (p *Postgres) ListSessionHistory(ctx context.Context, userID string, page, pageSize int) ([]model.ParkingSession, int, error) {
    if page <= 0 { page = 1 }
    if pageSize <= 0 || pageSize > 100 { pageSize = 20 }
    var total int
    if err := p.db.QueryRowContext(ctx, `SELECT count(*) FROM parking_sessions WHERE user_id=$1 AND ended_at IS NOT NULL`, userID).Scan(&total); err != nil {
        return nil, 0, err
    }
    rows, err := p.db.QueryContext(ctx, `SELECT `+sessionCols+` FROM parking_sessions WHERE user_id=$1 AND ended_at IS NOT NULL ORDER BY started_at DESC LIMIT $2 OFFSET $3`,
        userID, pageSize, (page-1)*pageSize)
    if err != nil { return nil, 0, err }
    defer rows.Close()
    out := []model.ParkingSession{}
    for rows.Next() {
        s, err := scanSession(rows)
        if err != nil { return nil, 0, err }
        out = append(out, s)
    }
    return out, total, rows.Err()
}

func (p *Postgres) UpsertPushToken(ctx context.Context, t model.PushToken) (model.PushToken, error) {
    t.ID = uuid.New().String()
    now := time.Now().UTC()
    t.CreatedAt = now
    t.UpdatedAt = now
    // A device token belongs to whoever signed in last on that device.
    row := p.db.QueryRowContext(ctx, `INSERT INTO push_tokens (id, user_id, token, platform, created_at, updated_at) VALUES ($1,$2,$3,$4,$5,$6)
        ON CONFLICT (token) DO UPDATE SET user_id=EXCLUDED.user_id, platform=EXCLUDED.platform, updated_at=EXCLUDED.updated_at
        RETURNING id::text, created_at`, t.ID, t.UserID, t.Token, t.Platform, t.CreatedAt, t.UpdatedAt)
    if err := row.Scan(&t.ID, &t.CreatedAt); err != nil { return model.PushToken{}, err }
    return t, nil
}

func (p *Postgres) DeletePushToken(ctx context.Context, userID, token string) error {
    res, err := p.db.ExecContext(ctx, `DELETE FROM push_tokens WHERE user_id=$1 AND token=$2`, userID, token)
    if err != nil { return err }
    if n, _ := res.RowsAffected(); n == 0 { return ErrNotFound }
    return nil
}

func (p *Postgres) ListPushTokens(ctx context.Context, userID string) ([]model.PushToken, error) {
    rows, err := p.db.QueryContext(ctx, `SELECT id::text, user_id::text, token, platform, created_at, updated_at FROM push_tokens WHERE user_id=$1`, userID)
    if err != nil { return nil, err }
    defer rows.Close()
    out := []model.PushToken{}
    for rows.Next() {
        var t model.PushToken
        if err := rows.Scan(&t.ID, &t.UserID, &t.Token, &t.Platform, &t.CreatedAt, &t.UpdatedAt); err != nil { return nil, err }
        out = append(out, t)
    }
    return out, rows.Err()
}

func (p *Postgres) GetPreferences(ctx context.Context, userID string) (model.NotificationPreferences, error) {
    var b []byte
    err := p.db.QueryRowContext(ctx, `SELECT prefs FROM notification_prefs WHERE user_id=$1`, userID).Scan(&b)
    if errors.Is(err, sql.ErrNoRows) { return model.DefaultPreferences(), nil }
    if err != nil { return model.NotificationPreferences{}, err }
    var prefs model.NotificationPreferences
    if err := json.Unmarshal(b, &prefs); err != nil { return model.NotificationPreferences{}, err }
    return prefs, nil
}

func (p *Postgres) SavePreferences(ctx context.Context, userID string, prefs model.NotificationPreferences) error {
    b, err := json.Marshal(prefs)
    if err != nil { return err }
    _, err = p.db.ExecContext(ctx, `INSERT INTO notification_prefs (user_id, prefs, updated_at) VALUES ($1,$2,$3)
        ON CONFLICT (user_id) DO UPDATE SET prefs=EXCLUDED.prefs, updated_at=EXCLUDED.updated_at`, userID, b, time.Now().UTC())
    return err
}

func (p *Postgres) EnqueueReminder(ctx context.Context, r Reminder) (string, error) {
    id := uuid.New().String()
    _, err := p.db.ExecContext(ctx, `INSERT INTO reminder_deliveries (id, user_id, session_id, push_token, platform, title, body, send_at, next_attempt_at, status, attempts) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$8,'pending',0)`,
        id, r.UserID, r.SessionID, r.PushToken, r.Platform, r.Title, r.Body, r.SendAt)
    if err != nil { return "", err }
    return id, nil
}

func (p *Postgres) CancelRemindersForSession(ctx context.Context, sessionID string) error {
    _, err := p.db.ExecContext(ctx, `DELETE FROM reminder_deliveries WHERE session_id=$1 AND status='pending'`, sessionID)
    return err
}

func (p *Postgres) FetchDueReminders(ctx context.Context, limit int) ([]Reminder, error) {
    if limit <= 0 { limit = 50 }
    rows, err := p.db.QueryContext(ctx, `SELECT id::text, user_id::text, session_id::text, push_token, platform, title, body, send_at, attempts FROM reminder_deliveries WHERE status='pending' AND next_attempt_at <= now() ORDER BY next_attempt_at LIMIT $1`, limit)
    if err != nil { return nil, err }
    defer rows.Close()
    out := []Reminder{}
    for rows.Next() {
        var r Reminder
        if err := rows.Scan(&r.ID, &r.UserID, &r.SessionID, &r.PushToken, &r.Platform, &r.Title, &r.Body, &r.SendAt, &r.Attempts); err != nil { return nil, err }
        r.Status = "pending"
        out = append(out, r)
    }
    return out, rows.Err()
}

func (p *Postgres) MarkReminder(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string) error {
    if success {
        _, err := p.db.ExecContext(ctx, `UPDATE reminder_deliveries SET status='sent', attempts=attempts+1, last_error=NULL, delivered_at=now() WHERE id=$1`, id)
        return err
    }
    _, err := p.db.ExecContext(ctx, `UPDATE reminder_deliveries SET attempts=attempts+1, last_error=$2, next_attempt_at=$3 WHERE id=$1`, id, nullIfEmpty(lastError), nextAttemptAt)
    return err
}

func (p *Postgres) FailReminder(ctx context.Context, id string, lastError string) error {
    _, err := p.db.ExecContext(ctx, `UPDATE reminder_deliveries SET status='failed', last_error=$2 WHERE id=$1`, id, nullIfEmpty(lastError))
    return err
}

func nullIfEmpty(s string) any { if s == "" { return nil }; return s }
