package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/yungbote/coursegate-backend/internal/platform/gcp"
	"github.com/yungbote/coursegate-backend/internal/platform/logger"
)

func TestClassifyStorageBootstrapErrorCodes(t *testing.T) {
	cases := []struct {
		name string
		src  gcp.ObjectStorageConfigErrorCode
		want StorageBootstrapErrorCode
	}{
		{"invalid mode", gcp.ObjectStorageConfigErrorInvalidMode, StorageBootstrapErrorInvalidMode},
		{"missing bucket", gcp.ObjectStorageConfigErrorMissingBucket, StorageBootstrapErrorMissingBucket},
		{"missing emulator host", gcp.ObjectStorageConfigErrorMissingEmulatorHost, StorageBootstrapErrorMissingEmulatorHost},
		{"invalid url", gcp.ObjectStorageConfigErrorInvalidURL, StorageBootstrapErrorInvalidEmulatorHost},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			storageCfg := gcp.ObjectStorageConfig{Mode: gcp.ObjectStorageModeGCSEmulator, Bucket: "proofs"}
			// Wrapped the way NewObjectStore wraps validation errors.
			srcErr := fmt.Errorf("validate object storage config: %w", &gcp.ObjectStorageConfigError{Code: tc.src})

			err := classifyStorageBootstrapError(storageCfg, srcErr)

			var got *StorageBootstrapError
			if !errors.As(err, &got) {
				t.Fatalf("expected StorageBootstrapError, got=%T", err)
			}
			if got.Code != tc.want {
				t.Fatalf("code: want=%q got=%q", tc.want, got.Code)
			}
			if got.Bucket != "proofs" {
				t.Fatalf("bucket: want=%q got=%q", "proofs", got.Bucket)
			}
			var cfgErr *gcp.ObjectStorageConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("expected cause to stay reachable")
			}
		})
	}
}

func TestClassifyStorageBootstrapErrorConnectFailed(t *testing.T) {
	err := classifyStorageBootstrapError(gcp.ObjectStorageConfig{Mode: gcp.ObjectStorageModeGCS}, errors.New("dial tcp: refused"))
	if code := storageBootstrapErrorCode(err); code != StorageBootstrapErrorConnectFailed {
		t.Fatalf("code: want=%q got=%q", StorageBootstrapErrorConnectFailed, code)
	}
}

type stubObjectStore struct{}

func (stubObjectStore) Put(ctx context.Context, key, contentType string, body io.Reader) error {
	return nil
}
func (stubObjectStore) Delete(ctx context.Context, key string) error { return nil }
func (stubObjectStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	return nil, gcp.ErrObjectNotFound
}
func (stubObjectStore) ListKeys(ctx context.Context, prefix string) ([]string, error) {
	return nil, nil
}
func (stubObjectStore) URL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	return "http://fake-gcs:4443/" + key, nil
}
func (stubObjectStore) Close() error { return nil }

func TestResolveObjectStore(t *testing.T) {
	orig := newObjectStore
	t.Cleanup(func() { newObjectStore = orig })

	var seen gcp.ObjectStorageConfig
	newObjectStore = func(log *logger.Logger, cfg gcp.ObjectStorageConfig) (gcp.ObjectStore, error) {
		seen = cfg
		return stubObjectStore{}, nil
	}
	cfg := gcp.ObjectStorageConfig{Mode: gcp.ObjectStorageModeGCSEmulator, EmulatorHost: "http://fake-gcs:4443", Bucket: "proofs"}
	store, err := resolveObjectStore(logger.Nop(), cfg)
	if err != nil {
		t.Fatalf("resolveObjectStore: %v", err)
	}
	if store == nil {
		t.Fatalf("expected store")
	}
	if seen != cfg {
		t.Fatalf("config: want=%+v got=%+v", cfg, seen)
	}

	newObjectStore = func(log *logger.Logger, cfg gcp.ObjectStorageConfig) (gcp.ObjectStore, error) {
		return nil, &gcp.ObjectStorageConfigError{Code: gcp.ObjectStorageConfigErrorMissingBucket}
	}
	_, err = resolveObjectStore(logger.Nop(), gcp.ObjectStorageConfig{Mode: gcp.ObjectStorageModeGCS})
	if code := storageBootstrapErrorCode(err); code != StorageBootstrapErrorMissingBucket {
		t.Fatalf("code: want=%q got=%q", StorageBootstrapErrorMissingBucket, code)
	}
}
