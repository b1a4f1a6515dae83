// Package pinning uploads images to a remote content-addressed pinning
// service and maps the returned content identifier to a retrievable gateway
// URL. The credential is checked before any network activity; a response
// without a content identifier is an upload error, kept distinct from
// transport failures.
package pinning

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/ipfs/go-cid"

	"metasnap.app/msc/internal/types"
)

// Client talks to one pinning endpoint.
type Client struct {
	endpoint string
	jwt      string
	gateway  string
	http     *http.Client
}

// New creates a pinning client. Credentials are validated per upload, not
// here, so a dashboard without pinning configured still starts.
func New(endpoint, jwt, gateway string) *Client {
	return &Client{
		endpoint: endpoint,
		jwt:      jwt,
		gateway:  gateway,
		http: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

type pinResponse struct {
	IpfsHash string `json:"IpfsHash"`
}

// Upload pins the content under the given filename and returns the gateway
// URL it will be retrievable at.
func (c *Client) Upload(ctx context.Context, name string, content io.Reader) (string, error) {
	if c.jwt == "" {
		return "", types.NewError(types.ErrConfig, "pinning credential is not set (MSC_PINNING_JWT)")
	}
	if c.gateway == "" {
		return "", types.NewError(types.ErrConfig, "pinning gateway is not set (MSC_PINNING_GATEWAY)")
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	part, err := mw.CreateFormFile("file", name)
	if err != nil {
		return "", fmt.Errorf("build upload payload: %w", err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return "", fmt.Errorf("read upload content: %w", err)
	}

	meta, _ := json.Marshal(map[string]string{"name": name})
	if err := mw.WriteField("pinataMetadata", string(meta)); err != nil {
		return "", fmt.Errorf("build upload payload: %w", err)
	}
	opts, _ := json.Marshal(map[string]int{"cidVersion": 1})
	if err := mw.WriteField("pinataOptions", string(opts)); err != nil {
		return "", fmt.Errorf("build upload payload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("build upload payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, &body)
	if err != nil {
		return "", fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", c.jwt)

	resp, err := c.http.Do(req)
	if err != nil {
		// Transport failure, not a pinning-service verdict
		return "", fmt.Errorf("upload request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read upload response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", types.NewError(types.ErrUpload,
			fmt.Sprintf("pinning service returned %d", resp.StatusCode))
	}

	var pr pinResponse
	if err := json.Unmarshal(raw, &pr); err != nil {
		return "", types.WrapError(types.ErrUpload, "malformed pinning response", err)
	}
	if pr.IpfsHash == "" {
		return "", types.NewError(types.ErrUpload, "pinning response lacked a content identifier")
	}
	if _, err := cid.Decode(pr.IpfsHash); err != nil {
		return "", types.WrapError(types.ErrUpload, "pinning service returned an invalid content identifier", err)
	}

	return strings.TrimRight(c.gateway, "/") + "/ipfs/" + pr.IpfsHash, nil
}
