package assets

import (
	"context"
	"fmt"
	"sync"
	"testing"
)

type echoStorage struct{}

func (echoStorage) UploadBuffer(_ context.Context, key string, _ []byte) (string, error) {
	return "https://store.example/" + key, nil
}

func (echoStorage) DownloadToBuffer(context.Context, string) ([]byte, error) {
	return nil, nil
}

func TestLockEntriesReleasedWhenIdle(t *testing.T) {
	uploader := NewUploader(echoStorage{})
	ctx := context.Background()

	var wg sync.WaitGroup
	for scene := 1; scene <= 5; scene++ {
		for attempt := 0; attempt < 4; attempt++ {
			wg.Add(1)
			go func(scene, attempt int) {
				defer wg.Done()
				_, err := uploader.Upload(ctx, UploadRequest{
					LockKey: fmt.Sprintf("scene-%d", scene),
					Key:     fmt.Sprintf("projects/p1/scenes/%d/image.png", scene),
					Data:    []byte(fmt.Sprintf("content-%d-%d", scene, attempt)),
				})
				if err != nil {
					t.Errorf("Upload returned error: %v", err)
				}
			}(scene, attempt)
		}
	}
	wg.Wait()

	uploader.mu.Lock()
	remaining := len(uploader.locks)
	uploader.mu.Unlock()
	if remaining != 0 {
		t.Fatalf("expected lock map drained after uploads, %d entries remain", remaining)
	}
}
