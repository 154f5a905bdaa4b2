// Package services contains server-side business logic. This file implements
// IdentityService, which turns a wallet's cryptographic signature into a
// bounded-lifetime session credential via single-use challenges.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fraudwatch/fraudwatch/internal/common"
	"github.com/fraudwatch/fraudwatch/internal/server/auth"
	"github.com/fraudwatch/fraudwatch/internal/server/config"
	"github.com/fraudwatch/fraudwatch/internal/server/models"
	"github.com/fraudwatch/fraudwatch/internal/server/repositories/repomanager"
	"github.com/fraudwatch/fraudwatch/internal/wallet"
)

// IdentityService provides wallet-based authentication:
// - IssueChallenge: mint a single-use, time-bound message for an address
// - RedeemChallenge: verify the wallet's signature and issue a session token
type IdentityService struct {
	db                *sql.DB
	repomanager       repomanager.RepositoryManager
	jwtSecret         []byte
	sessionValidity   time.Duration
	challengeValidity time.Duration
}

// NewIdentityService constructs an IdentityService using repositories and
// server config.
func NewIdentityService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config) *IdentityService {
	return &IdentityService{
		db:                db,
		repomanager:       m,
		jwtSecret:         []byte(cfg.SecretKey),
		sessionValidity:   cfg.SessionValidityDuration,
		challengeValidity: cfg.ChallengeValidityDuration,
	}
}

// IssueChallenge creates a fresh challenge binding the address to a random
// nonce and an expiry window. Issuing a new challenge supersedes any earlier
// unredeemed one for the same address.
func (s *IdentityService) IssueChallenge(ctx context.Context, address string) (*models.Challenge, error) {
	if !wallet.ValidAddress(address) {
		return nil, common.NewValidationError("address", "not a wallet address")
	}

	nonce, err := common.MakeRandHexString(16)
	if err != nil {
		return nil, common.ErrorInternal
	}

	now := time.Now().UTC()
	c := &models.Challenge{
		Nonce:     nonce,
		Address:   address,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.challengeValidity),
	}
	c.Message = challengeMessage(c)

	repo := s.repomanager.Challenges(s.db)

	// Opportunistic housekeeping; stale rows only waste space.
	_ = repo.DeleteExpired(ctx, now)

	if err := repo.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("error storing challenge: %v", err)
	}

	return c, nil
}

// RedeemChallenge verifies that signature is the address's own signature over
// its outstanding challenge message, consumes the nonce, and returns a new
// session. The nonce is consumed atomically: of any concurrent redemption
// attempts for the same nonce, exactly one succeeds and the rest observe
// ErrChallengeAlreadyUsed.
func (s *IdentityService) RedeemChallenge(ctx context.Context, address, signature string) (*models.Session, error) {
	repo := s.repomanager.Challenges(s.db)

	c, err := repo.FindLatestByAddress(ctx, address)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		return nil, common.ErrorInternal
	}

	recovered, err := wallet.RecoverAddress(c.Message, signature)
	if err != nil || !wallet.SameAddress(recovered, address) {
		return nil, common.ErrInvalidSignature
	}

	// Consumed challenges are kept as tombstones until they expire, so a
	// replay reads AlreadyUsed rather than falling through to NotFound.
	if c.Redeemed() {
		return nil, common.ErrChallengeAlreadyUsed
	}

	if c.Expired(time.Now().UTC()) {
		return nil, common.ErrChallengeExpired
	}

	if _, err := repo.Consume(ctx, c.Nonce); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrChallengeAlreadyUsed
		}
		return nil, common.ErrorInternal
	}

	return s.issueSession(address)
}

func (s *IdentityService) issueSession(address string) (*models.Session, error) {
	now := time.Now().UTC()

	token, err := auth.GenerateToken(address, s.jwtSecret, s.sessionValidity)
	if err != nil {
		return nil, common.ErrorInternal
	}

	return &models.Session{
		Address:   address,
		Token:     token,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.sessionValidity),
	}, nil
}

func challengeMessage(c *models.Challenge) string {
	return fmt.Sprintf(
		"FraudWatch authentication request\n\nWallet: %s\nNonce: %s\nExpires at: %s",
		c.Address, c.Nonce, c.ExpiresAt.Format(time.RFC3339))
}
