package storage

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stockledger/backend/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func testConfig() *config.StorageConfig {
	return &config.StorageConfig{
		Bucket:          "ledger-test",
		Region:          "us-east-1",
		Endpoint:        "http://localhost:9000",
		AccessKeyID:     "test-key",
		SecretAccessKey: "test-secret",
		UsePathStyle:    true,
	}
}

func TestNewS3Archive_Validation(t *testing.T) {
	ctx := context.Background()

	_, err := NewS3Archive(ctx, nil)
	assert.ErrorContains(t, err, "configuration is required")

	cfg := testConfig()
	cfg.Bucket = ""
	_, err = NewS3Archive(ctx, cfg)
	assert.ErrorContains(t, err, "bucket is required")

	cfg = testConfig()
	cfg.SecretAccessKey = ""
	_, err = NewS3Archive(ctx, cfg)
	assert.ErrorContains(t, err, "must be set together")
}

func TestNewS3Archive(t *testing.T) {
	cfg := testConfig()
	cfg.Endpoint = "localhost:9000"
	cfg.Region = ""

	s, err := NewS3Archive(context.Background(), cfg, WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	assert.Equal(t, "ledger-test", s.Bucket())
	assert.NotNil(t, s.logger)
}

func TestS3Archive_DownloadURL(t *testing.T) {
	s, err := NewS3Archive(context.Background(), testConfig())
	require.NoError(t, err)

	_, _, err = s.DownloadURL(context.Background(), "", time.Minute)
	assert.ErrorContains(t, err, "storage key is required")

	url, expiresAt, err := s.DownloadURL(context.Background(), "ledger-archive/t1/ledger.csv", 0)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "http://localhost:9000/ledger-test/"))
	assert.Contains(t, url, "X-Amz-Signature")
	assert.WithinDuration(t, time.Now().Add(DefaultPresignTTL), expiresAt, 5*time.Second)
}

func TestS3Archive_PutRequiresKey(t *testing.T) {
	s, err := NewS3Archive(context.Background(), testConfig())
	require.NoError(t, err)
	assert.ErrorContains(t, s.Put(context.Background(), "", []byte("x"), "text/csv"), "storage key is required")
}

func TestMemoryArchive(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryArchive()

	body := []byte("created_at,sku\n")
	require.NoError(t, m.Put(ctx, "b/ledger.csv", body, "text/csv"))
	require.NoError(t, m.Put(ctx, "a/ledger.xlsx", []byte{1, 2}, "application/xlsx"))
	body[0] = 'X'

	got, err := m.Get(ctx, "b/ledger.csv")
	require.NoError(t, err)
	assert.Equal(t, "created_at,sku\n", string(got))
	assert.Equal(t, "text/csv", m.ContentType("b/ledger.csv"))
	assert.Equal(t, []string{"a/ledger.xlsx", "b/ledger.csv"}, m.Keys())

	_, err = m.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrObjectNotFound)
	assert.Error(t, m.Put(ctx, "", nil, ""))

	url, _, err := m.DownloadURL(ctx, "b/ledger.csv", 0)
	require.NoError(t, err)
	assert.Equal(t, "memory://archive/b/ledger.csv", url)
	_, _, err = m.DownloadURL(ctx, "missing", 0)
	assert.ErrorIs(t, err, ErrObjectNotFound)
}
