package storage

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testS3Config(endpoint string) S3Config {
	return S3Config{
		Bucket:          "edits",
		Region:          "eu-west-1",
		Endpoint:        endpoint,
		AccessKeyID:     "test-access-key",
		SecretAccessKey: "test-secret-key",
	}
}

// putRecorder is a fake S3 endpoint that records the last PUT.
type putRecorder struct {
	method      string
	path        string
	contentType string
	disposition string
	body        string
}

func (p *putRecorder) server(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("read body: %v", err)
		}
		p.method = r.Method
		p.path = r.URL.Path
		p.contentType = r.Header.Get("Content-Type")
		p.disposition = r.Header.Get("Content-Disposition")
		p.body = string(body)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNewS3Storage(t *testing.T) {
	cfg := testS3Config("http://localhost:4566")

	s, err := NewS3Storage(t.TempDir(), cfg)
	require.NoError(t, err)
	assert.Equal(t, "edits", s.bucket)
	assert.Equal(t, "eu-west-1", s.region)
	assert.Equal(t, "http://localhost:4566", s.endpoint)
}

func TestS3Storage_InheritsWriteFile(t *testing.T) {
	s, err := NewS3Storage(t.TempDir(), testS3Config("http://localhost:4566"))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "seq_cut.xml")
	require.NoError(t, s.WriteFile(context.Background(), path, []byte("<xmeml/>")))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "<xmeml/>", string(content))
}

func TestS3Storage_UploadToS3(t *testing.T) {
	var rec putRecorder
	srv := rec.server(t)

	s, err := NewS3Storage(t.TempDir(), testS3Config(srv.URL))
	require.NoError(t, err)

	got, err := s.UploadToS3(context.Background(), "cuts/cut-1/seq_cut.xml", bytes.NewReader([]byte("<xmeml/>")))
	require.NoError(t, err)

	assert.Equal(t, http.MethodPut, rec.method)
	assert.Equal(t, "/edits/cuts/cut-1/seq_cut.xml", rec.path)
	assert.Equal(t, xmlContentType, rec.contentType)
	assert.Equal(t, `attachment; filename="seq_cut.xml"`, rec.disposition)
	assert.Equal(t, "<xmeml/>", rec.body)
	assert.Equal(t, srv.URL+"/edits/cuts/cut-1/seq_cut.xml", got)
}

func TestS3Storage_UploadToS3_EmptyKey(t *testing.T) {
	s, err := NewS3Storage(t.TempDir(), testS3Config("http://localhost:4566"))
	require.NoError(t, err)

	_, err = s.UploadToS3(context.Background(), "/", strings.NewReader("x"))
	assert.ErrorIs(t, err, ErrEmptyKey)
}

func TestS3Storage_UploadToS3_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	s, err := NewS3Storage(t.TempDir(), testS3Config(srv.URL))
	require.NoError(t, err)

	_, err = s.UploadToS3(context.Background(), "cuts/seq_cut.xml", strings.NewReader("x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cuts/seq_cut.xml")
}

func TestS3Storage_ObjectURL(t *testing.T) {
	tests := []struct {
		name     string
		endpoint string
		key      string
		want     string
	}{
		{
			name: "aws",
			key:  "cuts/cut-1/seq_cut.xml",
			want: "https://edits.s3.eu-west-1.amazonaws.com/cuts/cut-1/seq_cut.xml",
		},
		{
			name: "escaped segments",
			key:  "cuts/cut-1/Rough Cut #2_cut.xml",
			want: "https://edits.s3.eu-west-1.amazonaws.com/cuts/cut-1/Rough%20Cut%20%232_cut.xml",
		},
		{
			name:     "custom endpoint",
			endpoint: "http://minio:9000/",
			key:      "cuts/seq_cut.xml",
			want:     "http://minio:9000/edits/cuts/seq_cut.xml",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &S3Storage{bucket: "edits", region: "eu-west-1", endpoint: tt.endpoint}
			assert.Equal(t, tt.want, s.objectURL(tt.key))
		})
	}
}
