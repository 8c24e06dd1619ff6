package domain

import "time"

// RawEntry is a feed item as the source reported it. It lives only for
// one pipeline pass.
type RawEntry struct {
	Title       string
	SummaryHTML string
	Link        string
	PublishedAt *time.Time // nil when the feed omits it
}

// Entry is the normalized, immutable form of a RawEntry.
type Entry struct {
	Title       string
	Summary     string
	Link        string
	PublishedAt time.Time // ingestion time when the source omitted it
	Fingerprint string    // hex sha256 of TitleKey
	TitleKey    string    // comparison form, never displayed
	FeedIndex   int       // position of the feed in the configured list
	Position    int       // position of the entry within its feed
}

// Candidate is an Entry that survived dedup plus the fields the
// pipeline assigned on the way.
type Candidate struct {
	Entry
	Breaking        bool
	Topic           Topic
	VerifiedSources []string
	VerifiedCount   int
}
