// Package token issues short-lived per-participation repository access
// credentials and keeps an audit log of every repository access.
package token

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/edulab/buildci/pkg/log"
	"github.com/edulab/buildci/pkg/store"
	"github.com/edulab/buildci/pkg/utils"
)

// Repository access directions recorded in the audit log.
const (
	DirectionRead  = "READ"
	DirectionWrite = "WRITE"
)

type Issuer struct {
	store *store.Store
	ttl   time.Duration
}

func NewIssuer(s *store.Store, ttl time.Duration) *Issuer {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Issuer{store: s, ttl: ttl}
}

// IssueToken returns the live token for a (user, participation) pair,
// creating or replacing it when expired. At most one live token exists
// per pair at any time.
func (i *Issuer) IssueToken(userID, participationID int64) (*store.ParticipationVCSAccessToken, error) {
	now := time.Now()

	if existing, err := i.store.GetLiveToken(userID, participationID, now); err == nil {
		return existing, nil
	} else if !errors.Is(err, utils.ErrNotFound) {
		return nil, err
	}

	uid, _ := uuid.NewRandom()
	token := &store.ParticipationVCSAccessToken{
		UserID:          userID,
		ParticipationID: participationID,
		Token:           "vcstoken-" + strings.ReplaceAll(uid.String(), "-", ""),
		IssuedAt:        now,
		ExpiresAt:       now.Add(i.ttl),
	}

	if err := i.store.ReplaceToken(token); err != nil {
		return nil, err
	}

	log.Debugf("new - token - user: %d, participation: %d, expires: %s",
		userID, participationID, token.ExpiresAt.Format(time.RFC3339))

	return token, nil
}

// RevokeForParticipation deletes all tokens of a removed participation.
func (i *Issuer) RevokeForParticipation(participationID int64) error {
	return i.store.DeleteTokensForParticipation(participationID)
}

// RevokeForUser deletes all tokens of a removed user.
func (i *Issuer) RevokeForUser(userID int64) error {
	return i.store.DeleteTokensForUser(userID)
}

// RecordAccess appends an audit row immediately. The commit hash is not
// known yet at this point.
func (i *Issuer) RecordAccess(participationID int64, direction string) error {
	switch direction {
	case DirectionRead, DirectionWrite:
	default:
		return utils.NewDetailedError(utils.ErrBadRequest,
			fmt.Sprintf("unknown access direction %q", direction))
	}

	return i.store.CreateAccessLog(&store.VCSAccessLog{
		ParticipationID: participationID,
		Direction:       direction,
		AccessedAt:      time.Now(),
	})
}

// AttachCommitHash fills in the commit hash on the most recent audit
// row without one. An access may be audited without ever completing, so
// a missing row is non-fatal.
func (i *Issuer) AttachCommitHash(participationID int64, commitHash string) {
	err := i.store.AttachCommitHash(participationID, commitHash)
	if errors.Is(err, utils.ErrNotFound) {
		log.Debugf("int - audit - no open access row - participation: %d, commit: %.8s",
			participationID, commitHash)
		return
	}
	if err != nil {
		log.Warnf("err - audit - commit hash not attached - participation: %d: %v",
			participationID, err)
	}
}

// AccessLog returns the audit rows of a participation.
func (i *Issuer) AccessLog(participationID int64) ([]store.VCSAccessLog, error) {
	return i.store.ListAccessLogs(participationID)
}
