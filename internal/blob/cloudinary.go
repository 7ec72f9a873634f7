package blob

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Cloudinary stores objects through the Cloudinary REST API. Buckets become sub-folders
// of Folder. Object paths have the form "<resource_type>/<public_id>".
type Cloudinary struct {
	CloudName string
	APIKey    string
	APISecret string
	Folder    string
	APIBase   string
	DelivBase string
	HTTP      *http.Client
	now       func() time.Time
}

// NewCloudinary creates a Cloudinary-backed store.
func NewCloudinary(cloudName, apiKey, apiSecret, folder string) *Cloudinary {
	return &Cloudinary{
		CloudName: cloudName,
		APIKey:    apiKey,
		APISecret: apiSecret,
		Folder:    strings.Trim(folder, "/"),
		APIBase:   "https://api.cloudinary.com/v1_1",
		DelivBase: "https://res.cloudinary.com",
		HTTP:      &http.Client{Timeout: 30 * time.Second},
		now:       time.Now,
	}
}

type cloudinaryUpload struct {
	PublicID     string `json:"public_id"`
	SecureURL    string `json:"secure_url"`
	ResourceType string `json:"resource_type"`
	Bytes        int    `json:"bytes"`
}

type cloudinaryError struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Cloudinary) folder(bucket string) string {
	if c.Folder == "" {
		return bucket
	}
	return c.Folder + "/" + bucket
}

// Upload sends the file with resource_type "auto" so PDFs and spreadsheets are accepted.
func (c *Cloudinary) Upload(ctx context.Context, bucket, filename, _ string, r io.Reader) (Object, error) {
	params := map[string]string{
		"timestamp": strconv.FormatInt(c.now().Unix(), 10),
		"api_key":   c.APIKey,
		"folder":    c.folder(bucket),
	}
	// raw uploads keep their extension in the public id; images get it stripped by Cloudinary
	params["public_id"] = ObjectName(filename)
	params["signature"] = c.sign(params)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range params {
		_ = w.WriteField(k, v)
	}
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return Object{}, fmt.Errorf("cloudinary: create form file failed: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return Object{}, fmt.Errorf("cloudinary: write file failed: %w", err)
	}
	w.Close()

	var result cloudinaryUpload
	if err := c.post(ctx, "/auto/upload", w.FormDataContentType(), &buf, &result); err != nil {
		return Object{}, err
	}
	if result.ResourceType == "" {
		result.ResourceType = "image"
	}
	return Object{URL: result.SecureURL, Path: result.ResourceType + "/" + result.PublicID}, nil
}

// Delete destroys the object. A "not found" answer is treated as success.
func (c *Cloudinary) Delete(ctx context.Context, _ string, p string) error {
	resourceType, publicID, err := splitPath(p)
	if err != nil {
		return err
	}
	params := map[string]string{
		"timestamp":  strconv.FormatInt(c.now().Unix(), 10),
		"api_key":    c.APIKey,
		"public_id":  publicID,
		"invalidate": "true",
	}
	params["signature"] = c.sign(params)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range params {
		_ = w.WriteField(k, v)
	}
	w.Close()

	var result struct {
		Result string `json:"result"`
	}
	if err := c.post(ctx, "/"+resourceType+"/destroy", w.FormDataContentType(), &buf, &result); err != nil {
		return err
	}
	if result.Result != "ok" && result.Result != "not found" {
		return fmt.Errorf("cloudinary: destroy %s: %s", publicID, result.Result)
	}
	return nil
}

func (c *Cloudinary) PublicURL(_ context.Context, _ string, p string) (string, error) {
	resourceType, publicID, err := splitPath(p)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/%s/%s/upload/%s", c.DelivBase, c.CloudName, resourceType, publicID), nil
}

func splitPath(p string) (resourceType, publicID string, err error) {
	resourceType, publicID, ok := strings.Cut(strings.TrimLeft(p, "/"), "/")
	if !ok || publicID == "" {
		return "", "", fmt.Errorf("cloudinary: malformed object path %q", p)
	}
	return resourceType, publicID, nil
}

func (c *Cloudinary) post(ctx context.Context, endpoint, contentType string, body io.Reader, out any) error {
	url := fmt.Sprintf("%s/%s%s", c.APIBase, c.CloudName, endpoint)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return fmt.Errorf("cloudinary: create request failed: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("cloudinary: request failed: %w", err)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		var ce cloudinaryError
		if json.Unmarshal(data, &ce) == nil && ce.Error.Message != "" {
			return fmt.Errorf("cloudinary: %s (%d)", ce.Error.Message, resp.StatusCode)
		}
		return fmt.Errorf("cloudinary: request failed (%d): %s", resp.StatusCode, string(data))
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("cloudinary: decode response failed: %w", err)
	}
	return nil
}

// sign computes the Cloudinary API signature from the given params.
// api_key, file and resource_type are excluded from the signature.
func (c *Cloudinary) sign(params map[string]string) string {
	excludeKeys := map[string]bool{"api_key": true, "file": true, "resource_type": true}

	pairs := make([]string, 0, len(params))
	for k, v := range params {
		if !excludeKeys[k] && v != "" {
			pairs = append(pairs, k+"="+v)
		}
	}
	sort.Strings(pairs)

	h := sha1.New()
	h.Write([]byte(strings.Join(pairs, "&") + c.APISecret))
	return fmt.Sprintf("%x", h.Sum(nil))
}
