package assets

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"

	"storyreel/internal/services"
)

// UploadRequest describes one asset write. LockKey scopes the mutual
// exclusion; callers pass the scene id so concurrent writers of the same
// scene serialize. ExistingChecksum and ExistingURL describe the asset
// currently stored for this slot, if any.
type UploadRequest struct {
	LockKey          string
	Key              string
	Data             []byte
	ExistingURL      string
	ExistingChecksum string
	Force            bool
}

// UploadResult reports where the asset lives and whether the stored copy was
// reused.
type UploadResult struct {
	URL      string
	Checksum string
	ByteSize int64
	Reused   bool
}

// Uploader wraps ObjectStorage with per-scene locking and checksum
// short-circuiting. The last verified result per object key is kept so an
// attempt queued behind an in-flight duplicate reuses the first writer's
// asset instead of re-uploading.
type Uploader struct {
	storage ObjectStorage

	mu       sync.Mutex
	locks    map[string]*assetLock
	verified map[string]UploadResult
}

type assetLock struct {
	mu   sync.Mutex
	refs int
}

// NewUploader creates an Uploader over the given storage.
func NewUploader(storage ObjectStorage) *Uploader {
	return &Uploader{
		storage:  storage,
		locks:    make(map[string]*assetLock),
		verified: make(map[string]UploadResult),
	}
}

// Upload stores the asset unless a verified copy of the same content already
// exists for the slot and Force is off. Both the caller-supplied checksum and
// the uploader's own record of the last verified write are consulted under
// the scene lock, so a second concurrent attempt with identical content
// returns the first attempt's result. The upload itself runs under the
// bounded persistence retry policy.
func (u *Uploader) Upload(ctx context.Context, req UploadRequest) (UploadResult, error) {
	lock := u.acquire(req.lockKey())
	defer u.release(req.lockKey(), lock)

	sum := sha256.Sum256(req.Data)
	checksum := hex.EncodeToString(sum[:])

	if !req.Force {
		if req.ExistingURL != "" && req.ExistingChecksum == checksum {
			result := UploadResult{
				URL:      req.ExistingURL,
				Checksum: checksum,
				ByteSize: int64(len(req.Data)),
			}
			u.remember(req.Key, result)
			result.Reused = true
			return result, nil
		}
		if prior, ok := u.recall(req.Key); ok && prior.Checksum == checksum {
			prior.Reused = true
			return prior, nil
		}
	}

	var uploadedURL string
	err := services.WithRetry(ctx, services.PersistencePolicy(), func(ctx context.Context) error {
		url, err := u.storage.UploadBuffer(ctx, req.Key, req.Data)
		if err != nil {
			return err
		}
		uploadedURL = url
		return nil
	})
	if err != nil {
		return UploadResult{}, services.Wrap(services.ErrPersistence, "assets", "upload", req.Key, err)
	}
	result := UploadResult{
		URL:      uploadedURL,
		Checksum: checksum,
		ByteSize: int64(len(req.Data)),
	}
	u.remember(req.Key, result)
	return result, nil
}

func (r UploadRequest) lockKey() string {
	if r.LockKey != "" {
		return r.LockKey
	}
	return r.Key
}

// acquire takes the per-scene lock, creating the entry on first use. The
// refcount keeps the entry alive while waiters are queued on it.
func (u *Uploader) acquire(key string) *assetLock {
	u.mu.Lock()
	lock, ok := u.locks[key]
	if !ok {
		lock = &assetLock{}
		u.locks[key] = lock
	}
	lock.refs++
	u.mu.Unlock()

	lock.mu.Lock()
	return lock
}

func (u *Uploader) release(key string, lock *assetLock) {
	lock.mu.Unlock()
	u.mu.Lock()
	lock.refs--
	if lock.refs == 0 {
		delete(u.locks, key)
	}
	u.mu.Unlock()
}

func (u *Uploader) remember(key string, result UploadResult) {
	u.mu.Lock()
	u.verified[key] = result
	u.mu.Unlock()
}

func (u *Uploader) recall(key string) (UploadResult, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	result, ok := u.verified[key]
	return result, ok
}
