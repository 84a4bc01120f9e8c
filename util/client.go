package util

import (
	"net/http"
	"time"
)

const (
	cdnTimeout   = 30 * time.Second
	imageTimeout = 15 * time.Second
)

// NewCDNClient builds the client used for upload/delete calls against the
// storage service, signing every request with the service key.
func NewCDNClient(apiKey string) *http.Client {
	return &http.Client{
		Timeout:   cdnTimeout,
		Transport: &cdnTripper{apiKey: apiKey, tripper: http.DefaultTransport},
	}
}

// NewImageClient builds the plain client used to download stored sticker
// images for chat delivery.
func NewImageClient() *http.Client {
	return &http.Client{
		Timeout: imageTimeout,
	}
}

type cdnTripper struct {
	apiKey  string
	tripper http.RoundTripper
}

func (t *cdnTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	req.Header.Add("Authorization", t.apiKey)
	return t.tripper.RoundTrip(req)
}
