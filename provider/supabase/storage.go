package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/prolink/prolink-go"
)

// storageAPI is the object storage surface.
type storageAPI struct {
	client *Client
}

var _ prolink.StorageAPI = (*storageAPI)(nil)

func (s *storageAPI) Upload(ctx context.Context, bucket, path string, body io.Reader, opts prolink.UploadOptions) (*prolink.ObjectRef, error) {
	endpoint := s.client.config.baseURL() + "/storage/v1/object/" + bucket + "/" + path

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return nil, err
	}
	if opts.ContentType != "" {
		req.Header.Set("Content-Type", opts.ContentType)
	}
	if opts.Size > 0 {
		req.ContentLength = opts.Size
	}
	req.Header.Set("apikey", s.client.config.AnonKey)
	req.Header.Set("Authorization", "Bearer "+s.client.accessToken())
	// Re-uploads under a fresh object name never collide, but allow
	// overwrite for callers that reuse paths.
	req.Header.Set("x-upsert", "true")

	res, err := s.client.config.httpClient().Do(req)
	if err != nil {
		return nil, wrapTransport(err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, wrapTransport(err)
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, mapRestError(res.StatusCode, raw)
	}

	return &prolink.ObjectRef{
		Bucket:    bucket,
		Path:      path,
		PublicURL: s.PublicURL(bucket, path),
	}, nil
}

func (s *storageAPI) Remove(ctx context.Context, bucket string, paths []string) error {
	if len(paths) == 0 {
		return nil
	}

	payload, err := json.Marshal(map[string]any{"prefixes": paths})
	if err != nil {
		return err
	}

	endpoint := s.client.config.baseURL() + "/storage/v1/object/" + bucket
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", s.client.config.AnonKey)
	req.Header.Set("Authorization", "Bearer "+s.client.accessToken())

	res, err := s.client.config.httpClient().Do(req)
	if err != nil {
		return wrapTransport(err)
	}
	defer res.Body.Close()

	raw, _ := io.ReadAll(res.Body)
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return mapRestError(res.StatusCode, raw)
	}
	return nil
}

func (s *storageAPI) PublicURL(bucket, path string) string {
	return s.client.config.baseURL() + "/storage/v1/object/public/" + bucket + "/" + path
}
