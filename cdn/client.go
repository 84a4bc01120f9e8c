// Package cdn talks to the image storage service that holds the actual
// sticker images. Uploads must succeed before a sticker is persisted;
// deletions are best-effort.
package cdn

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"

	"github.com/disgoorg/json"
	"github.com/lmittmann/tint"

	"sticker-bot/errs"
)

// Upload is the image source for a new sticker: raw bytes from a site upload
// or a remote URL the CDN mirrors itself. Exactly one is set.
type Upload struct {
	Bytes     []byte
	RemoteURL string
}

type Client struct {
	uploadClient *http.Client
	imageClient  *http.Client
	baseURL      string
}

// New builds a CDN client. uploadClient signs mutating calls against the
// storage service; imageClient fetches public image URLs.
func New(uploadClient *http.Client, imageClient *http.Client, baseURL string) *Client {
	return &Client{
		uploadClient: uploadClient,
		imageClient:  imageClient,
		baseURL:      baseURL,
	}
}

type uploadResponse struct {
	URL string `json:"url"`
}

// UploadImage stores the image under keyHint and returns its durable URL.
// Every failure maps to an upstream error so callers never conflate it with
// validation.
func (c *Client) UploadImage(ctx context.Context, keyHint string, upload Upload) (string, error) {
	var (
		rq  *http.Request
		err error
	)
	if upload.RemoteURL != "" {
		body, merr := json.Marshal(map[string]string{"name": keyHint, "url": upload.RemoteURL})
		if merr != nil {
			return "", merr
		}
		rq, err = http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/images", bytes.NewReader(body))
		if rq != nil {
			rq.Header.Set("Content-Type", "application/json")
		}
	} else {
		var buf bytes.Buffer
		writer := multipart.NewWriter(&buf)
		part, werr := writer.CreateFormFile("image", keyHint+".png")
		if werr != nil {
			return "", werr
		}
		if _, werr = part.Write(upload.Bytes); werr != nil {
			return "", werr
		}
		if werr = writer.Close(); werr != nil {
			return "", werr
		}
		rq, err = http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/images", &buf)
		if rq != nil {
			rq.Header.Set("Content-Type", writer.FormDataContentType())
		}
	}
	if err != nil {
		return "", err
	}
	rs, err := c.uploadClient.Do(rq)
	if err != nil {
		slog.Error("cdn: error while running an upload request", slog.String("key.hint", keyHint), tint.Err(err))
		return "", errs.Wrap(errs.CodeUpstream, "image upload failed", err)
	}
	defer rs.Body.Close()
	if rs.StatusCode != http.StatusOK && rs.StatusCode != http.StatusCreated {
		slog.Warn("cdn: received an unexpected code from an upload response", slog.Int("status.code", rs.StatusCode), slog.String("key.hint", keyHint))
		return "", errs.Newf(errs.CodeUpstream, "image upload failed with status %d", rs.StatusCode)
	}
	var uploaded uploadResponse
	if err := json.NewDecoder(rs.Body).Decode(&uploaded); err != nil {
		slog.Error("cdn: error while decoding an upload response", slog.String("key.hint", keyHint), tint.Err(err))
		return "", errs.Wrap(errs.CodeUpstream, "image upload returned an unreadable response", err)
	}
	return uploaded.URL, nil
}

// DeleteImage asks the CDN to drop an image. Callers treat this as
// fire-and-forget; the error is returned for logging only.
func (c *Client) DeleteImage(ctx context.Context, imageURL string) error {
	rq, err := http.NewRequestWithContext(ctx, http.MethodDelete, fmt.Sprintf("%s/images?url=%s", c.baseURL, url.QueryEscape(imageURL)), nil)
	if err != nil {
		return err
	}
	rs, err := c.uploadClient.Do(rq)
	if err != nil {
		return err
	}
	defer rs.Body.Close()
	if rs.StatusCode != http.StatusOK && rs.StatusCode != http.StatusNoContent {
		return errs.Newf(errs.CodeUpstream, "image deletion failed with status %d", rs.StatusCode)
	}
	return nil
}

// FetchImage downloads a stored sticker image for attachment to a chat
// message. The caller closes the reader.
func (c *Client) FetchImage(ctx context.Context, imageURL string) (io.ReadCloser, error) {
	rq, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, err
	}
	rs, err := c.imageClient.Do(rq)
	if err != nil {
		slog.Error("cdn: error while downloading an image", slog.String("image.url", imageURL), tint.Err(err))
		return nil, err
	}
	if rs.StatusCode != http.StatusOK {
		rs.Body.Close()
		return nil, errs.Newf(errs.CodeUpstream, "image download failed with status %d", rs.StatusCode)
	}
	return rs.Body, nil
}
