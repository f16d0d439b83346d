//go:build integration

package storage

import (
	"context"
	"io"
	"net/http"
	"testing"

	"github.com/cloo-solutions/studybuddy/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestS3Client_Integration_ArchiveAndDownload(t *testing.T) {
	ctx := context.Background()
	rc := testutil.NewRustFSContainer(ctx, t)
	defer rc.Terminate(ctx)

	c, err := NewS3Client(ctx, S3ClientConfig{
		Endpoint:        rc.Endpoint(),
		Region:          "us-east-1",
		AccessKeyID:     testutil.S3AccessKey,
		SecretAccessKey: testutil.S3SecretKey,
		Bucket:          "studybuddy-test",
		UsePathStyle:    true,
	})
	require.NoError(t, err)

	require.NoError(t, c.EnsureBucket(ctx))
	require.NoError(t, c.EnsureBucket(ctx))

	key := DocumentKey("notes.pdf")
	body := []byte("%PDF-1.4 archived body")
	require.NoError(t, c.PutObject(ctx, key, "application/pdf", body))

	url, err := c.GenerateDownloadURL(ctx, key)
	require.NoError(t, err)

	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	got, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, body, got)
}
