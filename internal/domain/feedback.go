package domain

import "time"

// FeedbackEntry is one free-text note attached to an item (a generation
// container id or a file name).
type FeedbackEntry struct {
	Item     string `json:"item"`
	Feedback string `json:"feedback"`
}

// TagFeedback is the feedback text recorded when a tag chip is clicked.
func TagFeedback(t Tag) string {
	return t.Dimension + ": " + t.Value
}

// FeedbackRecord is the locally mirrored form of a FeedbackEntry.
type FeedbackRecord struct {
	ID        string    `json:"id"`
	SessionID string    `json:"sessionId"`
	Item      string    `json:"item"`
	Feedback  string    `json:"feedback"`
	CreatedAt time.Time `json:"createdAt"`
}

type FeedbackStore interface {
	AddFeedback(r *FeedbackRecord) error
	ListFeedback(item string) ([]FeedbackRecord, error)
	ListSessionFeedback(sessionID string) ([]FeedbackRecord, error)
}
