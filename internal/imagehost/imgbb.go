package imagehost

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"
	"time"
)

const imgbbURL = "https://api.imgbb.com"

// ImgBB uploads to the ImgBB hosting API.
type ImgBB struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

type ImgBBOption func(*ImgBB)

func WithHTTPClient(c *http.Client) ImgBBOption {
	return func(i *ImgBB) { i.httpClient = c }
}

func WithBaseURL(u string) ImgBBOption {
	return func(i *ImgBB) { i.baseURL = u }
}

func NewImgBB(apiKey string, opts ...ImgBBOption) *ImgBB {
	i := &ImgBB{
		apiKey:     apiKey,
		baseURL:    imgbbURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

type imgbbResponse struct {
	Data struct {
		URL        string `json:"url"`
		DisplayURL string `json:"display_url"`
	} `json:"data"`
	Success bool `json:"success"`
	Status  int  `json:"status"`
	Error   struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (i *ImgBB) Upload(ctx context.Context, filename string, r io.Reader) (string, error) {
	if _, err := ContentType(filename); err != nil {
		return "", err
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("image", filepath.Base(filename))
	if err != nil {
		return "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, io.LimitReader(r, MaxSize+1)); err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("close multipart: %w", err)
	}

	endpoint := i.baseURL + "/1/upload?key=" + url.QueryEscape(i.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &buf)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := i.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload to imgbb: %w", err)
	}
	defer resp.Body.Close()

	var out imgbbResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode imgbb response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode >= 400 || !out.Success || out.Data.URL == "" {
		return "", fmt.Errorf("imgbb upload failed: status %d: %s", resp.StatusCode, out.Error.Message)
	}
	return out.Data.URL, nil
}
