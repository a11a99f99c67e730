package store

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

// RecordImageUse advances the tracked last-used timestamp of an image to
// max(existing, ts). The timestamp never decreases, which protects
// against out-of-order delivery of usage reports.
func (s *Store) RecordImageUse(image string, ts time.Time) error {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var row DockerImageBuild
		err := tx.First(&row, "image = ?", image).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return tx.Create(&DockerImageBuild{Image: image, LastUsed: ts}).Error
		}
		if err != nil {
			return err
		}
		if row.LastUsed.Before(ts) {
			return tx.Model(&DockerImageBuild{}).
				Where("image = ? AND last_used < ?", image, ts).
				Update("last_used", ts).Error
		}
		return nil
	})
	return dbError(err)
}

// ListImagesStaleSince returns all images last used before the threshold.
func (s *Store) ListImagesStaleSince(threshold time.Time) ([]DockerImageBuild, error) {
	var rows []DockerImageBuild
	if err := s.db.Where("last_used < ?", threshold).Order("last_used").Find(&rows).Error; err != nil {
		return nil, dbError(err)
	}
	return rows, nil
}

// GetImageUse returns the tracked row for one image.
func (s *Store) GetImageUse(image string) (*DockerImageBuild, error) {
	var row DockerImageBuild
	if err := s.db.First(&row, "image = ?", image).Error; err != nil {
		return nil, dbError(err)
	}
	return &row, nil
}
