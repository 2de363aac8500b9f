package backup

import "errors"

var (
	// ErrNoBackup is returned when no snapshot is younger than the max age.
	ErrNoBackup = errors.New("no permissions backup found")

	// ErrEmptyBucket is returned when the backup bucket is not configured.
	ErrEmptyBucket = errors.New("backup bucket can not be empty")

	// ErrSlack is returned when a Slack notification is rejected.
	ErrSlack = errors.New("slack notification failed")
)
