// Package s3store implements the item store on S3-compatible object storage.
// Each item is one JSON object under items/{id}.json; listing fetches every
// object and orders by creation time, so the backend suits small collections
// and archival mirrors rather than hot paths.
package s3store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/google/uuid"

	"github.com/itemgrid/itemgrid/internal/app/domain/item"
	"github.com/itemgrid/itemgrid/internal/app/storage"
)

const keyPrefix = "items/"

// Config describes an S3-compatible endpoint for item storage.
type Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
}

// Store implements storage.ItemStore backed by an S3 bucket.
type Store struct {
	s3     *s3.Client
	bucket string
}

var _ storage.ItemStore = (*Store)(nil)

// New builds a Store from config. Path-style addressing is always on so
// MinIO and Tigris style endpoints work without wildcard DNS.
func New(cfg Config) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3store: bucket is required")
	}
	awsCfg := aws.Config{
		Region:      cfg.Region,
		Credentials: aws.NewCredentialsCache(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = true
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return &Store{s3: client, bucket: cfg.Bucket}, nil
}

// NewWithClient wraps an already configured client. Tests use it to point the
// store at a fake endpoint.
func NewWithClient(client *s3.Client, bucket string) *Store {
	return &Store{s3: client, bucket: bucket}
}

func itemKey(id string) string {
	return keyPrefix + id + ".json"
}

func (s *Store) CreateItem(ctx context.Context, it item.Item) (item.Item, error) {
	if it.ID == "" {
		it.ID = uuid.NewString()
	} else {
		_, err := s.GetItem(ctx, it.ID)
		if err == nil {
			return item.Item{}, fmt.Errorf("item %s: %w", it.ID, storage.ErrExists)
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return item.Item{}, err
		}
	}

	now := time.Now().UTC()
	it.CreatedAt = now
	it.UpdatedAt = now

	if err := s.putItem(ctx, it); err != nil {
		return item.Item{}, err
	}
	return it, nil
}

func (s *Store) UpdateItem(ctx context.Context, it item.Item) (item.Item, error) {
	existing, err := s.GetItem(ctx, it.ID)
	if err != nil {
		return item.Item{}, err
	}

	it.CreatedAt = existing.CreatedAt
	it.UpdatedAt = time.Now().UTC()

	if err := s.putItem(ctx, it); err != nil {
		return item.Item{}, err
	}
	return it, nil
}

func (s *Store) GetItem(ctx context.Context, id string) (item.Item, error) {
	key := itemKey(id)
	out, err := s.s3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return item.Item{}, fmt.Errorf("item %s: %w", id, storage.ErrNotFound)
		}
		return item.Item{}, fmt.Errorf("get %s: %w", key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return item.Item{}, fmt.Errorf("read %s: %w", key, err)
	}

	var it item.Item
	if err := json.Unmarshal(data, &it); err != nil {
		return item.Item{}, fmt.Errorf("decode %s: %w", key, err)
	}
	return it, nil
}

func (s *Store) ListItems(ctx context.Context) ([]item.Item, error) {
	var keys []string
	p := s3.NewListObjectsV2Paginator(s.s3, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(keyPrefix),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", keyPrefix, err)
		}
		for _, obj := range page.Contents {
			if obj.Key == nil {
				continue
			}
			keys = append(keys, *obj.Key)
		}
	}

	result := make([]item.Item, 0, len(keys))
	for _, key := range keys {
		id := strings.TrimSuffix(strings.TrimPrefix(key, keyPrefix), ".json")
		it, err := s.GetItem(ctx, id)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				// Deleted between list and get; skip it.
				continue
			}
			return nil, err
		}
		result = append(result, it)
	}

	// Bucket listings come back in key order; items are ordered by creation.
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (s *Store) DeleteItem(ctx context.Context, id string) error {
	// S3 deletes are idempotent, so probe first to report unknown identifiers.
	if _, err := s.GetItem(ctx, id); err != nil {
		return err
	}

	key := itemKey(id)
	_, err := s.s3.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

func (s *Store) putItem(ctx context.Context, it item.Item) error {
	key := itemKey(it.ID)
	data, err := json.MarshalIndent(it, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	data = append(data, '\n')

	_, err = s.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

func isNotFound(err error) bool {
	var nsk *s3types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound", "NoSuchBucket":
			return true
		}
	}
	return false
}
