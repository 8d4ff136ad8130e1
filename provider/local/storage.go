package local

import (
	"context"
	"io"
	"sync"

	"github.com/prolink/prolink-go"
)

// memStorage keeps uploaded objects in memory.
type memStorage struct {
	mu      sync.RWMutex
	objects map[string][]byte
	types   map[string]string
}

func newMemStorage() *memStorage {
	return &memStorage{
		objects: map[string][]byte{},
		types:   map[string]string{},
	}
}

var _ prolink.StorageAPI = (*memStorage)(nil)

func objectKey(bucket, path string) string {
	return bucket + "/" + path
}

func (s *memStorage) Upload(ctx context.Context, bucket, path string, body io.Reader, opts prolink.UploadOptions) (*prolink.ObjectRef, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, wrapUnavailable(err)
	}

	key := objectKey(bucket, path)
	s.mu.Lock()
	s.objects[key] = data
	s.types[key] = opts.ContentType
	s.mu.Unlock()

	return &prolink.ObjectRef{
		Bucket:    bucket,
		Path:      path,
		PublicURL: s.PublicURL(bucket, path),
	}, nil
}

func (s *memStorage) Remove(ctx context.Context, bucket string, paths []string) error {
	s.mu.Lock()
	for _, path := range paths {
		key := objectKey(bucket, path)
		delete(s.objects, key)
		delete(s.types, key)
	}
	s.mu.Unlock()
	return nil
}

func (s *memStorage) PublicURL(bucket, path string) string {
	return "local://storage/" + bucket + "/" + path
}

// Object returns a stored object's bytes and content type. Test
// helper.
func (s *memStorage) Object(bucket, path string) ([]byte, string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	key := objectKey(bucket, path)
	data, ok := s.objects[key]
	return data, s.types[key], ok
}
