package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hashipost/hashipost/internal/transfer"
)

func TestChunkPlan(t *testing.T) {
	const (
		kib = 1024
		mib = 1024 * 1024
	)

	tests := []struct {
		name       string
		fileSize   int64
		wantChunk  int64
		wantChunks int64
	}{
		{"empty file", 0, 0, 0},
		{"exactly one max chunk", 4 * mib, 4 * mib, 1},
		{"smaller than max chunk", 1 * mib, 1 * mib, 1},
		{"tiny file below floor", 300 * kib, 300 * kib, 1},
		{"evenly divisible by max", 8 * mib, 4 * mib, 2},
		{"steps down to even divisor", 10 * mib, 2*mib + 512*kib, 4},
		{"no even divisor, floor with short tail", 4*mib + 1, 512 * kib, 9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunkSize, totalChunks := chunkPlan(tt.fileSize)
			assert.Equal(t, tt.wantChunk, chunkSize)
			assert.Equal(t, tt.wantChunks, totalChunks)
		})
	}
}

func TestUploadChunkedRejectsEmptyMedia(t *testing.T) {
	// A host can answer 200 with an empty body; that must fail as an upload
	// error before any publish is initialized.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	svc := NewTiktokService(testConfig(), &fakeAccountRepo{}).(*tiktokService)

	_, err := svc.uploadChunked(context.Background(), "token", "caption", server.URL)
	require.Error(t, err)
	assert.ErrorIs(t, err, transfer.ErrUploadFailed)
}

func TestUploadChunkCancellationIsUploadFailure(t *testing.T) {
	// A cancelled context mid-transfer is reported as a failed upload so the
	// per-platform result row carries a mapped error, not a bare ctx error.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	svc := NewTiktokService(testConfig(), &fakeAccountRepo{}).(*tiktokService)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := svc.uploadChunk(ctx, server.URL, []byte("chunk"), 0, 5, 5)
	require.Error(t, err)
	assert.ErrorIs(t, err, transfer.ErrUploadFailed)
}

func TestChunkPlanInvariants(t *testing.T) {
	const (
		kib = int64(1024)
		mib = int64(1024 * 1024)
	)

	// Zero and negative sizes must not panic; the caller rejects empty media
	// before planning, but the plan itself stays total.
	for _, size := range []int64{0, -1} {
		chunkSize, totalChunks := chunkPlan(size)
		assert.Zero(t, chunkSize)
		assert.Zero(t, totalChunks)
	}

	sizes := []int64{
		1, 512 * kib, 512*kib + 1, mib, 3 * mib, 4 * mib, 4*mib + 1,
		5 * mib, 17*mib + 333, 64 * mib, 100*mib + 7,
	}

	for _, size := range sizes {
		chunkSize, totalChunks := chunkPlan(size)

		assert.LessOrEqual(t, chunkSize, 4*mib, "size %d", size)
		assert.LessOrEqual(t, chunkSize, size, "size %d", size)
		assert.Positive(t, totalChunks, "size %d", size)

		// Every chunk except the last is exactly chunkSize; the last covers
		// the remainder without overshooting by a full chunk.
		assert.Less(t, (totalChunks-1)*chunkSize, size, "size %d", size)
		assert.GreaterOrEqual(t, totalChunks*chunkSize, size, "size %d", size)

		if size >= 512*kib {
			assert.GreaterOrEqual(t, chunkSize, 512*kib, "size %d", size)
		}
	}
}
