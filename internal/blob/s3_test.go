package blob

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewS3Validation(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		name string
		cfg  S3Config
		want string
	}{
		{"missing bucket", S3Config{AccessKey: "k", SecretKey: "s"}, "bucket is required"},
		{"missing access key", S3Config{Bucket: "b", SecretKey: "s"}, "access key is required"},
		{"missing secret key", S3Config{Bucket: "b", AccessKey: "k"}, "secret key is required"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewS3(ctx, tc.cfg, nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestS3Key(t *testing.T) {
	store, err := NewS3(context.Background(), S3Config{
		Endpoint:     "localhost:9000",
		Bucket:       "receipts",
		Prefix:       "/uploads/",
		AccessKey:    "k",
		SecretKey:    "s",
		UsePathStyle: true,
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "uploads/a.jpg", store.key("a.jpg"))

	store.prefix = ""
	assert.Equal(t, "a.jpg", store.key("a.jpg"))
}
