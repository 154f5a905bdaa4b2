package models

import "time"

// Challenge is a single-use, time-bound auth challenge bound to a wallet
// address. Redemption stamps RedeemedAt rather than deleting the row, so a
// replayed nonce is distinguishable from one that was never issued.
type Challenge struct {
	Nonce      string     `json:"nonce"`
	Address    string     `json:"address"`
	Message    string     `json:"message"`
	IssuedAt   time.Time  `json:"issuedAt"`
	ExpiresAt  time.Time  `json:"expiresAt"`
	RedeemedAt *time.Time `json:"-"`
}

// Expired reports whether the challenge window has passed at the given time.
func (c *Challenge) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// Redeemed reports whether the nonce has already been consumed.
func (c *Challenge) Redeemed() bool {
	return c.RedeemedAt != nil
}

// Session is the bounded-lifetime credential issued after a successful
// challenge redemption.
type Session struct {
	Address   string    `json:"address"`
	Token     string    `json:"token"`
	IssuedAt  time.Time `json:"issuedAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}
