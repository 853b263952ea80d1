package models

import (
	"fmt"
	"strings"
	"time"
)

// Session is the per-visitor state of the ask/rate/save round.
// Answered is true only while a non-empty question and answer wait to be saved.
type Session struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
	Answered bool   `json:"answered"`
}

func (s Session) IsEmpty() bool {
	return !s.Answered && s.Question == "" && s.Answer == ""
}

type Rating string

const (
	RatingGood    Rating = "Good"
	RatingBad     Rating = "Bad"
	RatingPending Rating = "Pending"
)

var Ratings = []Rating{RatingGood, RatingBad, RatingPending}

func (r Rating) Valid() bool {
	switch r {
	case RatingGood, RatingBad, RatingPending:
		return true
	}
	return false
}

// ParseRating accepts the rating names case-insensitively.
func ParseRating(s string) (Rating, error) {
	for _, r := range Ratings {
		if strings.EqualFold(strings.TrimSpace(s), string(r)) {
			return r, nil
		}
	}
	return "", fmt.Errorf("unknown rating %q", s)
}

// Record is what gets written to the external store for one rated answer.
type Record struct {
	Title  string    `json:"title"`
	Answer string    `json:"answer"`
	Date   time.Time `json:"date"`
	User   string    `json:"user"`
	Rating Rating    `json:"rating"`
}

// DateString renders Date as ISO-8601 with the local offset.
func (r Record) DateString() string {
	return r.Date.Format(time.RFC3339)
}

// SavedRecord is the store's acknowledgement of a created record.
type SavedRecord struct {
	ID        string    `json:"id"`
	URL       string    `json:"url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type NoticeLevel string

const (
	NoticeSuccess NoticeLevel = "success"
	NoticeWarning NoticeLevel = "warning"
	NoticeError   NoticeLevel = "error"
)

type Notice struct {
	Level   NoticeLevel `json:"level"`
	Message string      `json:"message"`
}

// Result is returned by every controller operation. Render asks the
// presentation layer to redraw from Session.
type Result struct {
	Session Session      `json:"session"`
	Render  bool         `json:"render"`
	Notice  *Notice      `json:"notice,omitempty"`
	Saved   *SavedRecord `json:"saved,omitempty"`
}

// Request payloads

type AskRequest struct {
	Question string `json:"question" validate:"max=8000"`
}

type SaveRequest struct {
	User   string `json:"user" validate:"max=100"`
	Rating string `json:"rating" validate:"required,oneof=Good Bad Pending"`
}
