package journals

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// JournalStatus enumerates journal lifecycle values.
type JournalStatus string

const (
	JournalStatusPosted JournalStatus = "POSTED"
	JournalStatusVoid   JournalStatus = "VOID"
)

var (
	ErrUnbalanced          = errors.New("accounting: journal lines must balance")
	ErrTooFewLines         = errors.New("accounting: journal requires at least two lines")
	ErrJournalNotFound     = errors.New("accounting: journal entry not found")
	ErrSourceAlreadyLinked = errors.New("accounting: source already linked")
	ErrInvalidStatus       = errors.New("accounting: invalid status transition")
)

// JournalEntry captures posting metadata.
type JournalEntry struct {
	ID           int64         `json:"id"`
	Number       int64         `json:"number"`
	Date         time.Time     `json:"date"`
	SourceModule string        `json:"sourceModule"`
	SourceID     uuid.UUID     `json:"sourceId"`
	Memo         string        `json:"memo"`
	PostedBy     int64         `json:"postedBy"`
	PostedAt     time.Time     `json:"postedAt"`
	Status       JournalStatus `json:"status"`
	CreatedAt    time.Time     `json:"createdAt"`
	UpdatedAt    time.Time     `json:"updatedAt"`
	Lines        []JournalLine `json:"lines,omitempty"`
}

// JournalLine stores debit or credit amount for an account.
type JournalLine struct {
	ID        int64     `json:"id"`
	JournalID int64     `json:"journalId"`
	AccountID int64     `json:"accountId"`
	Debit     float64   `json:"debit"`
	Credit    float64   `json:"credit"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
