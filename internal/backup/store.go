package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/oslokommune/okdata-permission-api/internal/config"
	"github.com/oslokommune/okdata-permission-api/internal/keycloak"
)

// ObjectAPI is the part of the S3 client used by Store.
type ObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// NewS3Client returns an S3 client for cfg. Static credentials are used when both
// keys are set, the default credential chain otherwise.
func NewS3Client(ctx context.Context, cfg config.Backup) (*s3.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}

	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load AWS config")
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}

		o.UsePathStyle = cfg.UsePathStyle
	}), nil
}

// Store reads and writes permission snapshots below a key prefix.
type Store struct {
	api    ObjectAPI
	bucket string
	prefix string
	now    func() time.Time
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		s.now = now
	}
}

// NewStore returns a Store writing to bucket below prefix.
func NewStore(api ObjectAPI, bucket, prefix string, opts ...StoreOption) (*Store, error) {
	if bucket == "" {
		return nil, ErrEmptyBucket
	}

	s := &Store{
		api:    api,
		bucket: bucket,
		prefix: strings.TrimSuffix(prefix, "/"),
		now:    time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// ObjectKey returns the key of a snapshot taken at t:
// <prefix>/<year>/<month>/<timestamp>_permissions.json. The month is not zero padded
// and the colons of the UTC timestamp are replaced by dashes.
func ObjectKey(prefix string, t time.Time) string {
	t = t.UTC()

	layout := "2006-01-02T15:04:05"
	if t.Nanosecond() != 0 {
		layout += ".000000"
	}

	name := strings.ReplaceAll(t.Format(layout), ":", "-") + "_permissions.json"

	return monthPrefix(prefix, t) + name
}

func monthPrefix(prefix string, t time.Time) string {
	return fmt.Sprintf("%s/%d/%d/", prefix, t.Year(), int(t.Month()))
}

// Write stores perms as a new snapshot and returns its key.
func (s *Store) Write(ctx context.Context, perms []keycloak.Permission) (string, error) {
	body, err := json.Marshal(perms)
	if err != nil {
		return "", errors.Wrap(err, "failed to encode permissions")
	}

	key := ObjectKey(s.prefix, s.now())

	if _, err = s.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	}); err != nil {
		return "", errors.Wrapf(err, "failed to write backup %s", key)
	}

	log.Info().Str("key", key).Int("permissions", len(perms)).Msg("wrote permissions backup")

	return key, nil
}

// Read loads the snapshot stored under key.
func (s *Store) Read(ctx context.Context, key string) ([]keycloak.Permission, error) {
	out, err := s.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read backup %s", key)
	}

	defer out.Body.Close() //nolint:errcheck

	return Decode(out.Body)
}

// LoadLatest returns the newest snapshot and its key. Month prefixes are searched
// backwards from the current month until one holds a snapshot or the month lies
// more than maxAge in the past; ErrNoBackup is returned then.
func (s *Store) LoadLatest(ctx context.Context, maxAge time.Duration) ([]keycloak.Permission, string, error) {
	now := s.now().UTC()
	lookup := now

	for {
		prefix := monthPrefix(s.prefix, lookup)
		lookup = lookup.AddDate(0, -1, 0)

		if now.Sub(lookup) > maxAge {
			break
		}

		keys, err := s.listKeys(ctx, prefix)
		if err != nil {
			return nil, "", err
		}

		if len(keys) == 0 {
			continue
		}

		// timestamps sort lexically within a month
		key := slices.Max(keys)

		log.Info().Str("key", key).Msg("found latest permissions backup")

		perms, err := s.Read(ctx, key)

		return perms, key, err
	}

	return nil, "", errors.Wrapf(ErrNoBackup, "newer than %s", now.Add(-maxAge).Format(time.RFC3339))
}

func (s *Store) listKeys(ctx context.Context, prefix string) ([]string, error) {
	var (
		keys  []string
		token *string
	)

	for {
		out, err := s.api.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(s.bucket),
			Prefix:            aws.String(prefix),
			ContinuationToken: token,
		})
		if err != nil {
			return nil, errors.Wrapf(err, "failed to list %s", prefix)
		}

		for _, obj := range out.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}

		if !aws.ToBool(out.IsTruncated) {
			return keys, nil
		}

		token = out.NextContinuationToken
	}
}

// Decode reads a snapshot document.
func Decode(r io.Reader) ([]keycloak.Permission, error) {
	var perms []keycloak.Permission

	if err := json.NewDecoder(r).Decode(&perms); err != nil {
		return nil, errors.Wrap(err, "failed to decode permissions backup")
	}

	return perms, nil
}

// Encode writes perms as an indented snapshot document.
func Encode(w io.Writer, perms []keycloak.Permission) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return errors.Wrap(enc.Encode(perms), "failed to encode permissions backup")
}
