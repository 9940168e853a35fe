package s3

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSigner(t *testing.T) *Signer {
	t.Helper()
	s, err := New(context.Background(), Config{
		Bucket:      "praxsync-attachments",
		Region:      "eu-central-1",
		Endpoint:    "http://localhost:9000",
		PathStyle:   true,
		Expiry:      5 * time.Minute,
		Credentials: credentials.NewStaticCredentialsProvider("AKIDEXAMPLE", "secret", ""),
	})
	require.NoError(t, err)
	return s
}

func TestNew_RequiresBucket(t *testing.T) {
	_, err := New(context.Background(), Config{})
	assert.ErrorIs(t, err, ErrBucketRequired)
}

func TestSigner_URLs(t *testing.T) {
	s := newTestSigner(t)
	ctx := context.Background()

	tests := []struct {
		name string
		sign func(context.Context, string) (string, error)
	}{
		{name: "upload", sign: s.UploadURL},
		{name: "download", sign: s.DownloadURL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := tt.sign(ctx, "attachments/a1")
			require.NoError(t, err)

			u, err := url.Parse(raw)
			require.NoError(t, err)
			assert.Equal(t, "localhost:9000", u.Host)
			assert.Equal(t, "/praxsync-attachments/attachments/a1", u.Path)
			assert.Equal(t, "300", u.Query().Get("X-Amz-Expires"))
			assert.Contains(t, u.Query().Get("X-Amz-Credential"), "AKIDEXAMPLE")
			assert.NotEmpty(t, u.Query().Get("X-Amz-Signature"))
		})
	}
}
