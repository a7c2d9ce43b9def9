package chat

import "time"

// DefaultTrialSeconds is the budget of a free-trial session.
const DefaultTrialSeconds = 300

// Session captures an anonymous timed trial conversation.
type Session struct {
	ID            string     `json:"sessionId"`
	StartTime     time.Time  `json:"startTime"`
	EndTime       *time.Time `json:"endTime"`
	IsActive      bool       `json:"isActive"`
	RemainingTime int        `json:"remainingTime"`
	Duration      int        `json:"duration"`
}

// SessionUpdate carries the mutable fields of a session.
type SessionUpdate struct {
	RemainingTime int
	IsActive      bool
	EndTime       *time.Time
}

// Remaining returns the whole seconds left of budget at now.
// A clock that reads before start counts as no time elapsed.
func Remaining(start, now time.Time, budget int) int {
	elapsed := int(now.Sub(start) / time.Second)
	if elapsed < 0 {
		elapsed = 0
	}
	remaining := budget - elapsed
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Recompute derives the session state at now from its start time and budget.
func (s Session) Recompute(now time.Time) SessionUpdate {
	remaining := Remaining(s.StartTime, now, s.Duration)
	update := SessionUpdate{
		RemainingTime: remaining,
		IsActive:      remaining > 0,
	}
	if remaining <= 0 {
		end := s.StartTime.Add(time.Duration(s.Duration) * time.Second)
		update.EndTime = &end
	}
	return update
}

// Apply returns a copy of the session with update applied.
func (s Session) Apply(update SessionUpdate) Session {
	s.RemainingTime = update.RemainingTime
	s.IsActive = update.IsActive
	s.EndTime = update.EndTime
	return s
}
