package models

import "time"

// ReputationProfile is the derived trust record for a reporter address.
// It is always recomputed by replaying the address's report history, so the
// stored row can be rebuilt at any time for auditing.
type ReputationProfile struct {
	Address          string    `json:"address"`
	ReportsSubmitted int       `json:"reportsSubmitted"`
	ReportsVerified  int       `json:"reportsVerified"`
	ReportsRejected  int       `json:"reportsRejected"`
	UpvotesReceived  int       `json:"upvotesReceived"`
	Score            int       `json:"reputationScore"`
	Tokens           int       `json:"reputationTokens"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// WebsiteStatus is the aggregated verdict for a checked target.
type WebsiteStatus string

const (
	WebsiteSafe    WebsiteStatus = "safe"
	WebsiteDanger  WebsiteStatus = "danger"
	WebsiteUnknown WebsiteStatus = "unknown"
)

// WebsiteVerdict is the answer to a website check: the aggregated status for
// a target plus the threat categories reported against it.
type WebsiteVerdict struct {
	Target      string        `json:"target"`
	TargetHash  string        `json:"targetHash"`
	Status      WebsiteStatus `json:"status"`
	ReportCount int           `json:"reportCount"`
	Threats     []Category    `json:"threats,omitempty"`
	CheckedAt   time.Time     `json:"checkedAt"`
}
