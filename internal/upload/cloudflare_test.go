package upload

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/catalogsync/internal/diag"
)

func TestCloudflare_Upload(t *testing.T) {
	var gotID, gotName, gotBody, gotAuth, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		require.NoError(t, r.ParseMultipartForm(1<<20))
		gotID = r.FormValue("id")
		f, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		body, _ := io.ReadAll(f)
		gotName, gotBody = hdr.Filename, string(body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"success":true,"errors":[],"result":{"id":"remote-123"}}`)
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "Front.JPG")
	require.NoError(t, os.WriteFile(path, []byte("jpeg-bytes"), 0o644))

	cf := NewCloudflare(CloudflareConfig{AccountID: "acct", Token: "tok", APIBase: srv.URL})
	id, err := cf.Upload(context.Background(), path, "suggested")
	require.NoError(t, err)

	assert.Equal(t, "remote-123", id, "returned id wins over the suggested one")
	assert.Equal(t, "Bearer tok", gotAuth)
	assert.Equal(t, "/accounts/acct/images/v1", gotPath)
	assert.Equal(t, "suggested", gotID)
	assert.Equal(t, "suggested.jpg", gotName)
	assert.Equal(t, "jpeg-bytes", gotBody)
}

func TestCloudflare_UploadFailures(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"success false", http.StatusOK, `{"success":false,"errors":[{"message":"Image too large"}]}`, "Image too large"},
		{"http error with message", http.StatusForbidden, `{"success":false,"errors":[{"message":"Unauthorized"}]}`, "Unauthorized"},
		{"http error without body", http.StatusBadGateway, `oops`, "Upload failed (502)"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = io.WriteString(w, tc.body)
			}))
			defer srv.Close()

			path := filepath.Join(t.TempDir(), "a.png")
			require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

			cf := NewCloudflare(CloudflareConfig{AccountID: "acct", Token: "tok", APIBase: srv.URL})
			_, err := cf.Upload(context.Background(), path, "s")
			require.Error(t, err)
			assert.ErrorIs(t, err, diag.RemoteError)
			assert.Contains(t, err.Error(), tc.want)
			assert.Contains(t, err.Error(), "a.png")
		})
	}
}

func TestCloudflare_SuccessWithoutIDKeepsSuggested(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"success":true,"result":{}}`)
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "a.png")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	id, err := NewCloudflare(CloudflareConfig{AccountID: "a", Token: "t", APIBase: srv.URL}).
		Upload(context.Background(), path, "keep-me")
	require.NoError(t, err)
	assert.Equal(t, "keep-me", id)
}

func TestCloudflareConfig_Validate(t *testing.T) {
	assert.Error(t, CloudflareConfig{AccountID: "a"}.Validate())
	assert.Error(t, CloudflareConfig{Token: "t"}.Validate())
	assert.NoError(t, CloudflareConfig{AccountID: "a", Token: "t"}.Validate())
}
