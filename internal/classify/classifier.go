package classify

import (
	"strings"

	"newswatch/internal/domain"
)

// breakingKeywords mark urgent corporate events. Matching is
// case-insensitive substring containment on the title.
var breakingKeywords = []string{
	"acquisition",
	"acquires",
	"acquired",
	"merger",
	"bankruptcy",
	"bankrupt",
	"insolvency",
	"strike",
	"walkout",
	"lawsuit",
	"recall",
	"layoff",
	"shutdown",
	"shuts down",
	"tariff",
	"sanction",
	"breaking",
}

// topicBuckets are checked in order; the first bucket whose keyword set
// intersects the combined title+summary wins. The order is part of the
// contract: changing it changes classification of ambiguous entries.
var topicBuckets = []struct {
	topic    domain.Topic
	keywords []string
}{
	{domain.TopicMergers, []string{"acquisition", "acquires", "acquired", "merger", "merges", "takeover", "buyout"}},
	{domain.TopicFunding, []string{"funding", "investment", "series a", "series b", "ipo", "raises", "venture", "stake"}},
	{domain.TopicSupplyChain, []string{"supply chain", "logistics", "sourcing", "factory", "supplier", "shipping", "freight", "warehouse"}},
	{domain.TopicPolicy, []string{"tariff", "regulation", "policy", "sanction", "trade deal", "compliance", "ban", "legislation"}},
	{domain.TopicRetailStrategy, []string{"store", "retail", "e-commerce", "ecommerce", "omnichannel", "expansion", "flagship", "launch"}},
}

// IsBreaking reports whether the title describes an urgent corporate
// event.
func IsBreaking(title string) bool {
	lower := strings.ToLower(title)
	for _, kw := range breakingKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// DetectTopic assigns the first matching topic bucket, falling back to
// the Industry bucket when nothing matches.
func DetectTopic(title, summary string) domain.Topic {
	text := strings.ToLower(title + " " + summary)
	for _, bucket := range topicBuckets {
		for _, kw := range bucket.keywords {
			if strings.Contains(text, kw) {
				return bucket.topic
			}
		}
	}
	return domain.TopicIndustry
}
