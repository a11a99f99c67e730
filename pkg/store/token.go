package store

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/edulab/buildci/pkg/utils"
)

// GetLiveToken returns the unexpired token for a (user, participation)
// pair, or ErrNotFound.
func (s *Store) GetLiveToken(userID, participationID int64, now time.Time) (*ParticipationVCSAccessToken, error) {
	var token ParticipationVCSAccessToken
	err := s.db.
		Where("user_id = ? AND participation_id = ? AND expires_at > ?", userID, participationID, now).
		First(&token).Error
	if err != nil {
		return nil, dbError(err)
	}
	return &token, nil
}

// ReplaceToken removes any previous token for the pair and stores the new
// one, keeping the at-most-one-live-token invariant.
func (s *Store) ReplaceToken(token *ParticipationVCSAccessToken) error {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		err := tx.Where("user_id = ? AND participation_id = ?", token.UserID, token.ParticipationID).
			Delete(&ParticipationVCSAccessToken{}).Error
		if err != nil {
			return err
		}
		return tx.Create(token).Error
	})
	return dbError(err)
}

// DeleteTokensForParticipation revokes all tokens of a participation.
func (s *Store) DeleteTokensForParticipation(participationID int64) error {
	return dbError(s.db.Where("participation_id = ?", participationID).
		Delete(&ParticipationVCSAccessToken{}).Error)
}

// DeleteTokensForUser revokes all tokens of a user.
func (s *Store) DeleteTokensForUser(userID int64) error {
	return dbError(s.db.Where("user_id = ?", userID).
		Delete(&ParticipationVCSAccessToken{}).Error)
}

// CreateAccessLog appends one audit row.
func (s *Store) CreateAccessLog(entry *VCSAccessLog) error {
	return dbError(s.db.Create(entry).Error)
}

// AttachCommitHash fills in the commit hash on the most recent audit row
// of a participation that does not have one yet.
func (s *Store) AttachCommitHash(participationID int64, commitHash string) error {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var entry VCSAccessLog
		err := tx.Where("participation_id = ? AND commit_hash IS NULL", participationID).
			Order("accessed_at DESC").
			First(&entry).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.ErrNotFound
		}
		if err != nil {
			return err
		}
		return tx.Model(&VCSAccessLog{}).Where("id = ?", entry.ID).
			Update("commit_hash", commitHash).Error
	})
	if errors.Is(err, utils.ErrNotFound) {
		return utils.ErrNotFound
	}
	return dbError(err)
}

// ListAccessLogs returns the audit rows of a participation, oldest first.
func (s *Store) ListAccessLogs(participationID int64) ([]VCSAccessLog, error) {
	var rows []VCSAccessLog
	err := s.db.Where("participation_id = ?", participationID).
		Order("accessed_at").
		Find(&rows).Error
	if err != nil {
		return nil, dbError(err)
	}
	return rows, nil
}
