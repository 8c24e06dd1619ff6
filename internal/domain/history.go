package domain

import "time"

// RunMode selects which half of the feed stream a run considers.
type RunMode string

const (
	ModeRegular  RunMode = "regular"
	ModeBreaking RunMode = "breaking"
)

// ParseRunMode maps a config string to a RunMode.
func ParseRunMode(s string) (RunMode, bool) {
	switch RunMode(s) {
	case ModeRegular, ModeBreaking:
		return RunMode(s), true
	}
	return "", false
}

// Topic is the bucket assigned by the classifier.
type Topic string

const (
	TopicMergers        Topic = "M&A"
	TopicFunding        Topic = "Funding"
	TopicSupplyChain    Topic = "SupplyChain"
	TopicPolicy         Topic = "Policy"
	TopicRetailStrategy Topic = "RetailStrategy"
	TopicIndustry       Topic = "Industry"
)

// HistoryRecord is one posted story. Records are append-only and never
// deleted; a record is written at most once per distinct news event.
type HistoryRecord struct {
	Key      string    `db:"key"` // fingerprint of the posted title
	Title    string    `db:"title"`
	TitleKey string    `db:"title_key"` // kept for future similarity scans
	PostedAt time.Time `db:"posted_at"`
	Mode     RunMode   `db:"mode"`
}

// RunState is the single global row backing the cooldown throttle.
type RunState struct {
	ID           int64     `db:"id"`
	LastPostedAt time.Time `db:"last_posted_at"`
	LastMode     RunMode   `db:"last_mode"`
	TotalPosted  int64     `db:"total_posted"`
}
