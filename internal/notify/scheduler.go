// Package notify schedules and delivers parking expiry reminders.
package notify

import (
	"context"
	"fmt"
	"time"

	"curbside/internal/model"
	"curbside/internal/store"
)

type Scheduler struct {
	Store store.Store
}

func NewScheduler(s store.Store) *Scheduler {
	return &Scheduler{Store: s}
}

// Schedule enqueues one reminder per configured lead time ahead of the
// session expiry, for every registered device. Lead times that have
// already passed are skipped.
func (p *Scheduler) Schedule(ctx context.Context, userID string, sess model.ParkingSession) {
	if sess.ExpiresAt == nil {
		return
	}
	prefs, err := p.Store.GetPreferences(ctx, userID)
	if err != nil || !prefs.Enabled {
		return
	}
	tokens, err := p.Store.ListPushTokens(ctx, userID)
	if err != nil || len(tokens) == 0 {
		return
	}
	now := time.Now().UTC()
	for _, lead := range prefs.ReminderTimes {
		sendAt := sess.ExpiresAt.Add(-time.Duration(lead) * time.Minute)
		if !sendAt.After(now) {
			continue
		}
		body := fmt.Sprintf("Your parking expires in %d minutes", lead)
		if sess.Address != "" {
			body = fmt.Sprintf("Your parking at %s expires in %d minutes", sess.Address, lead)
		}
		for _, t := range tokens {
			_, _ = p.Store.EnqueueReminder(ctx, store.Reminder{
				UserID:    userID,
				SessionID: sess.ID,
				PushToken: t.Token,
				Platform:  t.Platform,
				Title:     "Parking reminder",
				Body:      body,
				SendAt:    sendAt,
			})
		}
	}
}

// Reschedule drops pending reminders for the session and schedules fresh
// ones. Used after relocation or a payment that moves the expiry.
func (p *Scheduler) Reschedule(ctx context.Context, userID string, sess model.ParkingSession) {
	_ = p.Store.CancelRemindersForSession(ctx, sess.ID)
	p.Schedule(ctx, userID, sess)
}

// Cancel drops all pending reminders for an ended session.
func (p *Scheduler) Cancel(ctx context.Context, sessionID string) {
	_ = p.Store.CancelRemindersForSession(ctx, sessionID)
}
