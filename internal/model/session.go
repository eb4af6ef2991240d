package model

import "time"

// Session is a revocable server-side login. It is usable only while it is not
// disabled and expires is after now.
type Session struct {
	ID       int64     `json:"id"`
	UserID   int64     `json:"user_id"`
	Created  time.Time `json:"created"`
	Expires  time.Time `json:"expires"`
	IP       *string   `json:"ip"`
	Disabled bool      `json:"disabled"`
}

func (s Session) Live(now time.Time) bool {
	return !s.Disabled && s.Expires.After(now)
}

type SessionFilter struct {
	IDs        []int64
	UserIDs    []int64
	IPs        []string
	Disabled   *bool
	CreatedGTE *time.Time
	CreatedLTE *time.Time
	ExpiresGTE *time.Time
	ExpiresLTE *time.Time
}

type CreateSession struct {
	UserID int64   `json:"user_id" validate:"required,gt=0"`
	IP     *string `json:"ip" validate:"omitempty,ip"`
}

// UpdateSession patches the fields that are set.
type UpdateSession struct {
	Expires  *time.Time `json:"expires"`
	IP       *string    `json:"ip" validate:"omitempty,ip"`
	Disabled *bool      `json:"disabled"`
}

func (u UpdateSession) Apply(s Session) Session {
	if u.Expires != nil {
		s.Expires = u.Expires.UTC()
	}
	if u.IP != nil {
		ip := *u.IP
		s.IP = &ip
	}
	if u.Disabled != nil {
		s.Disabled = *u.Disabled
	}
	return s
}
