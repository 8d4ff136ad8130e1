package prolink

import (
	"context"
	"io"
	"path"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// AvatarBucket is the storage bucket holding profile pictures.
const AvatarBucket = "avatars"

// defaultAvatarMaxBytes caps uploads at 5MB, matching the bucket
// policy.
const defaultAvatarMaxBytes int64 = 5 * 1024 * 1024

var avatarContentTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// AvatarUploader stores profile pictures and keeps the profile row's
// avatar_url in sync. Objects are scoped under the owner's user id so
// bucket policies can restrict writes per user.
type AvatarUploader struct {
	storage  StorageAPI
	data     DataAPI
	logger   Logger
	maxBytes int64
}

type AvatarUploaderOption func(*AvatarUploader)

// WithAvatarMaxBytes overrides the upload size cap.
func WithAvatarMaxBytes(n int64) AvatarUploaderOption {
	return func(u *AvatarUploader) {
		if n > 0 {
			u.maxBytes = n
		}
	}
}

// WithAvatarLogger overrides the uploader's logger.
func WithAvatarLogger(l Logger) AvatarUploaderOption {
	return func(u *AvatarUploader) {
		if l != nil {
			u.logger = l
		}
	}
}

// NewAvatarUploader builds an uploader over the given storage and data
// APIs.
func NewAvatarUploader(storage StorageAPI, data DataAPI, opts ...AvatarUploaderOption) *AvatarUploader {
	u := &AvatarUploader{
		storage:  storage,
		data:     data,
		logger:   defLogger{},
		maxBytes: defaultAvatarMaxBytes,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(u)
		}
	}
	return u
}

// Upload stores a new avatar for userID and points the profile row at
// its public URL. The object name is a fresh UUID so a re-upload never
// fights CDN caching of the previous object; the old object is removed
// best effort afterwards.
func (u *AvatarUploader) Upload(ctx context.Context, userID uuid.UUID, body io.Reader, contentType string, size int64) (*ObjectRef, error) {
	if userID == uuid.Nil {
		return nil, ErrNotAuthenticated
	}

	ext, ok := avatarContentTypes[strings.ToLower(contentType)]
	if !ok {
		return nil, goerrors.New("unsupported avatar content type", goerrors.CategoryValidation).
			WithTextCode("UNSUPPORTED_AVATAR_TYPE").
			WithMetadata(map[string]any{"content_type": contentType})
	}

	if size > u.maxBytes {
		return nil, goerrors.New("avatar exceeds the size limit", goerrors.CategoryValidation).
			WithTextCode("AVATAR_TOO_LARGE").
			WithMetadata(map[string]any{"size": size, "max": u.maxBytes})
	}

	previous, err := u.currentObjectPath(ctx, userID)
	if err != nil {
		return nil, err
	}

	objectPath := path.Join(userID.String(), uuid.New().String()+ext)
	ref, err := u.storage.Upload(ctx, AvatarBucket, objectPath, io.LimitReader(body, u.maxBytes), UploadOptions{
		ContentType: contentType,
		Size:        size,
	})
	if err != nil {
		u.logger.Error("avatar upload for user %s failed: %v", userID, err)
		return nil, err
	}

	if err := u.data.Update(ctx, TableProfiles,
		map[string]any{"id": userID.String()},
		map[string]any{"avatar_url": ref.PublicURL}); err != nil {
		u.logger.Error("avatar url update for user %s failed: %v", userID, err)
		return nil, err
	}

	if previous != "" && previous != objectPath {
		if rerr := u.storage.Remove(ctx, AvatarBucket, []string{previous}); rerr != nil {
			u.logger.Warn("stale avatar cleanup for user %s failed: %v", userID, rerr)
		}
	}

	return ref, nil
}

// Remove deletes the stored avatar and clears the profile row's
// avatar_url.
func (u *AvatarUploader) Remove(ctx context.Context, userID uuid.UUID) error {
	if userID == uuid.Nil {
		return ErrNotAuthenticated
	}

	current, err := u.currentObjectPath(ctx, userID)
	if err != nil {
		return err
	}

	if err := u.data.Update(ctx, TableProfiles,
		map[string]any{"id": userID.String()},
		map[string]any{"avatar_url": ""}); err != nil {
		return err
	}

	if current != "" {
		if rerr := u.storage.Remove(ctx, AvatarBucket, []string{current}); rerr != nil {
			u.logger.Warn("avatar removal for user %s failed: %v", userID, rerr)
		}
	}
	return nil
}

// currentObjectPath resolves the bucket-relative path of the profile's
// avatar, empty when none is set. A missing profile row is not an
// error here; sign-up replication may still be in flight.
func (u *AvatarUploader) currentObjectPath(ctx context.Context, userID uuid.UUID) (string, error) {
	profile := &Profile{}
	err := u.data.SelectOne(ctx, TableProfiles, map[string]any{"id": userID.String()}, profile)
	if err != nil {
		if IsNotFound(err) {
			return "", nil
		}
		return "", err
	}
	if profile.AvatarURL == "" {
		return "", nil
	}

	// Public URLs end with /<bucket>/<user-id>/<object>.
	marker := "/" + AvatarBucket + "/"
	idx := strings.LastIndex(profile.AvatarURL, marker)
	if idx < 0 {
		return "", nil
	}
	return profile.AvatarURL[idx+len(marker):], nil
}
