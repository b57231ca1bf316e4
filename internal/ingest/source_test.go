package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/termtree/internal/config"
)

// fakeObjects serves GetObject from a bucket/key map.
type fakeObjects map[string][]byte

func (f fakeObjects) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	body, ok := f[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(body))}, nil
}

// objectRoundTripper answers path-style GET requests the way S3 would.
type objectRoundTripper struct {
	objects  map[string]string // "/bucket/key" -> body
	requests []string
}

func (rt *objectRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	rt.requests = append(rt.requests, req.Method+" "+req.URL.Path)
	body, ok := rt.objects[req.URL.Path]
	if req.Method != http.MethodGet || !ok {
		msg := `<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>not found</Message></Error>`
		return &http.Response{
			StatusCode: http.StatusNotFound,
			Header:     http.Header{"Content-Type": {"application/xml"}},
			Body:       io.NopCloser(strings.NewReader(msg)),
			Request:    req,
		}, nil
	}
	return &http.Response{
		StatusCode:    http.StatusOK,
		Header:        http.Header{"Content-Length": {fmt.Sprintf("%d", len(body))}, "Content-Type": {"application/json"}},
		ContentLength: int64(len(body)),
		Body:          io.NopCloser(strings.NewReader(body)),
		Request:       req,
	}, nil
}

func TestIsolateAWSEnv_IgnoresCABundle(t *testing.T) {
	t.Setenv("AWS_CA_BUNDLE", filepath.Join(t.TempDir(), "missing-ca.pem"))
	isolateAWSEnv(t)

	_, err := NewS3Client(context.Background(), config.S3{Region: "eu-west-1"},
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("AKIA", "SECRET", "")),
		awsconfig.WithHTTPClient(&http.Client{Transport: &objectRoundTripper{}}),
	)
	require.NoError(t, err)
}

func TestParseS3URI(t *testing.T) {
	tests := []struct {
		uri         string
		bucket, key string
		ok          bool
	}{
		{"s3://vocabs/animals.json", "vocabs", "animals.json", true},
		{"s3://vocabs/nested/dir/a.hcl", "vocabs", "nested/dir/a.hcl", true},
		{"s3://vocabs", "", "", false},
		{"s3:///key", "", "", false},
		{"/tmp/animals.json", "", "", false},
	}
	for _, tt := range tests {
		bucket, key, ok := parseS3URI(tt.uri)
		assert.Equal(t, tt.ok, ok, tt.uri)
		assert.Equal(t, tt.bucket, bucket, tt.uri)
		assert.Equal(t, tt.key, key, tt.uri)
	}
}

func TestFetch_LocalFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "v.json")
	require.NoError(t, os.WriteFile(p, []byte(`{"id":"v"}`), 0o644))

	f := NewFetcher(config.S3{})
	for _, uri := range []string{p, "file://" + p} {
		rc, err := f.Fetch(context.Background(), uri)
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		require.NoError(t, rc.Close())
		assert.Equal(t, `{"id":"v"}`, string(data))
	}

	_, err := f.Fetch(context.Background(), filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestFetch_S3WithFakeClient(t *testing.T) {
	f := NewFetcher(config.S3{}).WithClient(fakeObjects{"vocabs/a.json": []byte("hello")})

	rc, err := f.Fetch(context.Background(), "s3://vocabs/a.json")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	_, err = f.Fetch(context.Background(), "s3://vocabs/missing.json")
	assert.ErrorContains(t, err, "s3://vocabs/missing.json")
}

// isolateAWSEnv keeps ambient AWS settings (a CA bundle, profiles, shared
// config files) from changing how the SDK builds its HTTP client.
func isolateAWSEnv(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("AWS_CA_BUNDLE", "")
	t.Setenv("AWS_PROFILE", "")
	t.Setenv("AWS_CONFIG_FILE", filepath.Join(dir, "config"))
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", filepath.Join(dir, "credentials"))
}

func TestNewS3Client_CustomEndpoint(t *testing.T) {
	isolateAWSEnv(t)
	rt := &objectRoundTripper{objects: map[string]string{
		"/vocabs/animals.json": `{"id":"animals"}`,
	}}
	client, err := NewS3Client(context.Background(),
		config.S3{Region: "eu-west-1", Endpoint: "https://mock.s3.local", PathStyle: true},
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("AKIA", "SECRET", "")),
		awsconfig.WithHTTPClient(&http.Client{Transport: rt}),
	)
	require.NoError(t, err)

	f := NewFetcher(config.S3{}).WithClient(client)
	rc, err := f.Fetch(context.Background(), "s3://vocabs/animals.json")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.JSONEq(t, `{"id":"animals"}`, string(data))
	assert.Contains(t, rt.requests, "GET /vocabs/animals.json")

	_, err = f.Fetch(context.Background(), "s3://vocabs/nope.json")
	assert.Error(t, err)
}
