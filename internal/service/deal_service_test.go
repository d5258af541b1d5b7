package service

import (
	"bufio"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/GoPolymarket/dutchauction/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingRepo struct {
	mu      sync.Mutex
	inserts int
}

func (f *failingRepo) Insert(ctx context.Context, d *model.Deal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inserts++
	return errors.New("db down")
}

func (f *failingRepo) Recent(ctx context.Context, filter model.DealFilter) ([]model.Deal, error) {
	return nil, errors.New("db down")
}

func deal(round uint64, winner string, at time.Time) *model.Deal {
	return &model.Deal{ID: round, RoundID: round, LotName: "tulips", WinnerID: winner, Price: dec(500), CreatedAt: at}
}

func TestDealServiceFallsBackToMemory(t *testing.T) {
	repo := &failingRepo{}
	dir := t.TempDir()
	svc, err := NewDealService(dir, 10, repo)
	require.NoError(t, err)

	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	svc.Record(deal(1, "a", base))
	svc.Record(deal(2, "b", base.Add(time.Minute)))
	svc.Record(deal(3, "a", base.Add(2*time.Minute)))
	svc.Close()

	assert.Equal(t, 3, repo.inserts, "repo failures must not stop the writer")

	got, err := svc.Recent(context.Background(), model.DealFilter{})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, uint64(3), got[0].RoundID, "newest first")

	got, _ = svc.Recent(context.Background(), model.DealFilter{WinnerID: "a", Limit: 1})
	require.Len(t, got, 1)
	assert.Equal(t, uint64(3), got[0].RoundID)

	from := base.Add(30 * time.Second)
	to := base.Add(90 * time.Second)
	got, _ = svc.Recent(context.Background(), model.DealFilter{From: &from, To: &to})
	require.Len(t, got, 1)
	assert.Equal(t, uint64(2), got[0].RoundID)

	files, err := filepath.Glob(filepath.Join(dir, "deals-*.jsonl"))
	require.NoError(t, err)
	require.Len(t, files, 1)
	f, err := os.Open(files[0])
	require.NoError(t, err)
	defer f.Close()
	lines := 0
	for sc := bufio.NewScanner(f); sc.Scan(); {
		lines++
	}
	assert.Equal(t, 3, lines)
}

func TestDealBufferWrapsAround(t *testing.T) {
	b := newDealBuffer(2)
	now := time.Now()
	b.Add(deal(1, "a", now))
	b.Add(deal(2, "a", now))
	b.Add(deal(3, "a", now))

	got := b.List(model.DealFilter{})
	require.Len(t, got, 2)
	assert.Equal(t, uint64(3), got[0].RoundID)
	assert.Equal(t, uint64(2), got[1].RoundID)
}

func TestDealServiceRecordAfterCloseIsSafe(t *testing.T) {
	svc, err := NewDealService("", 1, nil)
	require.NoError(t, err)
	svc.Close()
	svc.Close()
	assert.NotPanics(t, func() { svc.Record(deal(1, "a", time.Now())) })
}
