package model

import "time"

// Status is the three-level traffic-light classification for a spot.
type Status string

const (
    StatusGreen  Status = "green"
    StatusYellow Status = "yellow"
    StatusRed    Status = "red"
)

// RuleKind identifies the restriction category of a rule.
type RuleKind string

const (
    KindStreetCleaning RuleKind = "street_cleaning"
    KindMeter          RuleKind = "meter"
    KindNoParking      RuleKind = "no_parking"
    KindNoStanding     RuleKind = "no_standing"
)

// Prohibits reports whether the kind is an outright prohibition.
func (k RuleKind) Prohibits() bool { return k == KindNoParking || k == KindNoStanding }

// ParkingType classifies the overall result; it is a RuleKind or "free".
type ParkingType string

const (
    TypeFree           ParkingType = "free"
    TypeMeter          ParkingType = "meter"
    TypeStreetCleaning ParkingType = "street_cleaning"
    TypeNoParking      ParkingType = "no_parking"
    TypeNoStanding     ParkingType = "no_standing"
)

// Rule is one parking restriction. Immutable after catalogue load.
// StartMin/EndMin are minutes since midnight, parsed once from the
// HH:MM strings; a zero-length window is never active.
type Rule struct {
    ID          string   `json:"id"`
    Kind        RuleKind `json:"type"`
    Description string   `json:"description"`
    Days        []int    `json:"days"` // 0=Monday .. 6=Sunday
    StartTime   string   `json:"startTime,omitempty"`
    EndTime     string   `json:"endTime,omitempty"`
    Side        string   `json:"side,omitempty"`
    MaxDuration int      `json:"maxDuration,omitempty"` // minutes; 0 = no cap
    Rate        float64  `json:"rate,omitempty"`        // $/hour
    ZoneCode    string   `json:"zoneCode,omitempty"`

    StartMin int `json:"-"`
    EndMin   int `json:"-"`
}

// AppliesOn reports whether the rule's day set contains the weekday (0=Monday).
func (r Rule) AppliesOn(weekday int) bool {
    for _, d := range r.Days {
        if d == weekday { return true }
    }
    return false
}

// Holiday is a calendar date on which alternate-side enforcement may be suspended.
type Holiday struct {
    Date                   string `json:"date"` // YYYY-MM-DD
    Name                   string `json:"name"`
    AlternateSideSuspended bool   `json:"alternateSideSuspended"`
}

// LocationFacts are derived per query and never persisted by the engine.
type LocationFacts struct {
    Borough  string `json:"borough"`
    ZoneCode string `json:"zoneCode,omitempty"`
    Address  string `json:"address,omitempty"`
}

// StatusResult is the engine's answer for one (coordinates, timestamp) query.
// Exactly one canonical status per query; rules keep catalogue order.
type StatusResult struct {
    Status          Status      `json:"status"`
    Reason          string      `json:"reason"`
    ParkingType     ParkingType `json:"parkingType"`
    Rules           []Rule      `json:"rules"`
    ExpiresAt       *time.Time  `json:"expiresAt,omitempty"`
    Address         string      `json:"address,omitempty"`
    ZoneCode        string      `json:"zoneCode,omitempty"`
    Borough         string      `json:"borough"`
    Recommendations []string    `json:"recommendations"`
}

// User is an account created via Apple or Google sign-in.
type User struct {
    ID        string    `json:"id"`
    Email     string    `json:"email"`
    Name      string    `json:"name,omitempty"`
    AvatarURL string    `json:"avatarUrl,omitempty"`
    AppleID   string    `json:"-"`
    GoogleID  string    `json:"-"`
    Provider  string    `json:"provider"` // apple, google, dev
    CreatedAt time.Time `json:"createdAt"`
    UpdatedAt time.Time `json:"updatedAt"`
}

// SavedLocation is a user's named place (home, work, ...).
type SavedLocation struct {
    ID        string    `json:"id"`
    UserID    string    `json:"userId"`
    Name      string    `json:"name"`
    Latitude  float64   `json:"latitude"`
    Longitude float64   `json:"longitude"`
    Address   string    `json:"address,omitempty"`
    CreatedAt time.Time `json:"createdAt"`
}

// ParkingSession is one parked-car episode. The matched rules are stored
// verbatim and a fresh status is derived on every location update.
type ParkingSession struct {
    ID     string `json:"id"`
    UserID string `json:"userId"`

    Latitude  float64 `json:"latitude"`
    Longitude float64 `json:"longitude"`
    Address   string  `json:"address,omitempty"`
    ZoneCode  string  `json:"zoneCode,omitempty"`
    Borough   string  `json:"borough,omitempty"`

    Status       Status      `json:"status"`
    StatusReason string      `json:"statusReason"`
    ParkingType  ParkingType `json:"parkingType"`
    Rules        []Rule      `json:"applicableRules"`

    StartedAt time.Time  `json:"startedAt"`
    EndedAt   *time.Time `json:"endedAt,omitempty"`
    ExpiresAt *time.Time `json:"expiresAt,omitempty"`

    PaymentStatus    string     `json:"paymentStatus"` // unpaid, paid, expired
    PaymentMethod    string     `json:"paymentMethod,omitempty"`
    PaidDurationMin  int        `json:"paidDurationMinutes,omitempty"`
    PaymentExpiresAt *time.Time `json:"paymentExpiresAt,omitempty"`

    DetectionMethod string    `json:"detectionMethod"` // manual, bluetooth, activity_recognition
    CreatedAt       time.Time `json:"createdAt"`
    UpdatedAt       time.Time `json:"updatedAt"`
}

// Active reports whether the session has not been ended.
func (s ParkingSession) Active() bool { return s.EndedAt == nil }

// PushToken is a device registration for expiry reminders.
type PushToken struct {
    ID        string    `json:"id"`
    UserID    string    `json:"userId"`
    Token     string    `json:"token"`
    Platform  string    `json:"platform"` // ios, android
    CreatedAt time.Time `json:"createdAt"`
    UpdatedAt time.Time `json:"updatedAt"`
}

// API request shapes

type Coordinates struct {
    Latitude  float64 `json:"latitude"`
    Longitude float64 `json:"longitude"`
}

type CreateSessionRequest struct {
    Coordinates     Coordinates `json:"coordinates"`
    DetectionMethod string      `json:"detectionMethod,omitempty"`
}

type UpdateLocationRequest struct {
    Coordinates Coordinates `json:"coordinates"`
}

type ConfirmPaymentRequest struct {
    Method          string `json:"method"` // parkmobile, paybyphone, coin, other
    DurationMinutes int    `json:"durationMinutes"`
}

type SavedLocationRequest struct {
    Name        string      `json:"name"`
    Coordinates Coordinates `json:"coordinates"`
    Address     string      `json:"address,omitempty"`
}

type UpdateUserRequest struct {
    Name *string `json:"name,omitempty"`
}

type RegisterTokenRequest struct {
    Token    string `json:"token"`
    Platform string `json:"platform"`
}

type UnregisterTokenRequest struct {
    Token string `json:"token"`
}

// NotificationPreferences control reminder delivery ahead of a session expiry.
type NotificationPreferences struct {
    Enabled       bool  `json:"enabled"`
    ReminderTimes []int `json:"reminderTimes"` // minutes before expiry
}

func DefaultPreferences() NotificationPreferences {
    return NotificationPreferences{Enabled: true, ReminderTimes: []int{60, 30, 15, 5}}
}

type AppleLoginRequest struct {
    IDToken string `json:"idToken"`
    Nonce   string `json:"nonce,omitempty"`
}

type GoogleLoginRequest struct {
    AccessToken string `json:"accessToken"`
}

type RefreshRequest struct {
    RefreshToken string `json:"refreshToken"`
}

// TokenPair is an access/refresh pair; ExpiresAt is Unix milliseconds.
type TokenPair struct {
    AccessToken  string `json:"accessToken"`
    RefreshToken string `json:"refreshToken"`
    ExpiresAt    int64  `json:"expiresAt"`
}

type AuthResponse struct {
    User   User      `json:"user"`
    Tokens TokenPair `json:"tokens"`
}

// PaginatedSessions is the history page shape.
type PaginatedSessions struct {
    Items    []ParkingSession `json:"items"`
    Total    int              `json:"total"`
    Page     int              `json:"page"`
    PageSize int              `json:"pageSize"`
    HasMore  bool             `json:"hasMore"`
}
