package upload

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"

	"github.com/JonMunkholm/catalogsync/internal/diag"
)

// Host stores an image remotely and returns its asset id. suggestedID is a
// hint; the returned id is authoritative.
type Host interface {
	Upload(ctx context.Context, filePath, suggestedID string) (string, error)
}

// DefaultAPIBase is the Cloudflare API root.
const DefaultAPIBase = "https://api.cloudflare.com/client/v4"

// CloudflareConfig holds Cloudflare Images credentials.
type CloudflareConfig struct {
	AccountID string
	Token     string
	APIBase   string
	Timeout   time.Duration
}

// Validate fails when credentials are missing.
func (c CloudflareConfig) Validate() error {
	if c.AccountID == "" || c.Token == "" {
		return diag.New(diag.RemoteError,
			"missing image host credentials: XA_CLOUDFLARE_ACCOUNT_ID and XA_CLOUDFLARE_IMAGES_TOKEN are required")
	}
	return nil
}

// Cloudflare uploads images to Cloudflare Images.
type Cloudflare struct {
	cfg    CloudflareConfig
	client *resty.Client
}

// NewCloudflare creates a client. It does not check credentials; call
// Validate first.
func NewCloudflare(cfg CloudflareConfig) *Cloudflare {
	if cfg.APIBase == "" {
		cfg.APIBase = DefaultAPIBase
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.APIBase, "/")).
		SetTimeout(cfg.Timeout).
		SetAuthToken(cfg.Token)
	return &Cloudflare{cfg: cfg, client: client}
}

type cloudflareResponse struct {
	Success *bool `json:"success"`
	Errors  []struct {
		Message string `json:"message"`
	} `json:"errors"`
	Result struct {
		ID string `json:"id"`
	} `json:"result"`
}

// Upload posts the file as multipart form data with fields "file" and "id".
func (c *Cloudflare) Upload(ctx context.Context, filePath, suggestedID string) (string, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return "", diag.Wrap(diag.IOError, err, "open %s", filePath)
	}
	defer f.Close()

	ext := strings.ToLower(filepath.Ext(filePath))
	if ext == "" {
		ext = ".jpg"
	}
	name := filepath.Base(filePath)

	resp, err := c.client.R().
		SetContext(ctx).
		SetFileReader("file", suggestedID+ext, f).
		SetMultipartFormData(map[string]string{"id": suggestedID}).
		Post(fmt.Sprintf("/accounts/%s/images/v1", c.cfg.AccountID))
	if err != nil {
		return "", diag.Wrap(diag.RemoteError, err, "upload failed: %s", name)
	}

	var body cloudflareResponse
	_ = json.Unmarshal(resp.Body(), &body)

	if resp.IsError() || (body.Success != nil && !*body.Success) {
		msg := fmt.Sprintf("Upload failed (%d)", resp.StatusCode())
		if len(body.Errors) > 0 && body.Errors[0].Message != "" {
			msg = "upload failed: " + body.Errors[0].Message
		}
		return "", diag.New(diag.RemoteError, "%s: %s", name, msg)
	}
	if body.Result.ID != "" {
		return body.Result.ID, nil
	}
	return suggestedID, nil
}

// NewSuggestedID returns a fresh id for an upload.
func NewSuggestedID() string {
	return uuid.NewString()
}
