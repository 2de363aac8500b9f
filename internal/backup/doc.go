// Package backup snapshots every permission to S3 and holds the maintenance
// jobs built on those snapshots: restore, grantee replacement, grantee
// stripping and the deleted user check.
package backup
