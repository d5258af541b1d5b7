package service

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/GoPolymarket/dutchauction/internal/model"
	"github.com/GoPolymarket/dutchauction/internal/pkg/logger"
	"github.com/GoPolymarket/dutchauction/internal/pkg/metrics"
)

type DealRepo interface {
	Insert(ctx context.Context, deal *model.Deal) error
	Recent(ctx context.Context, filter model.DealFilter) ([]model.Deal, error)
}

// DealService is the fire-and-forget deal recorder. Records go to an
// in-memory ring, then asynchronously to the repo and a daily JSONL journal.
// Write failures are logged and never reach the caller.
type DealService struct {
	dealChan chan *model.Deal
	logFile  *os.File
	buffer   *dealBuffer
	repo     DealRepo
	done     chan struct{}

	mu     sync.RWMutex
	closed bool
}

// NewDealService starts the writer goroutine. logDir may be empty to skip the
// journal; repo may be nil to keep deals in memory only.
func NewDealService(logDir string, buffer int, repo DealRepo) (*DealService, error) {
	if buffer <= 0 {
		buffer = 1000
	}

	var f *os.File
	if logDir != "" {
		if err := os.MkdirAll(logDir, 0755); err != nil {
			return nil, err
		}
		filename := filepath.Join(logDir, "deals-"+time.Now().Format("2006-01-02")+".jsonl")
		var err error
		f, err = os.OpenFile(filename, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return nil, err
		}
	}

	svc := &DealService{
		dealChan: make(chan *model.Deal, buffer),
		logFile:  f,
		buffer:   newDealBuffer(buffer),
		repo:     repo,
		done:     make(chan struct{}),
	}
	go svc.processDeals()
	return svc, nil
}

func (s *DealService) Record(deal *model.Deal) {
	if deal == nil {
		return
	}
	s.buffer.Add(deal)

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return
	}
	select {
	case s.dealChan <- deal:
	default:
		metrics.DealRecords.WithLabelValues("dropped").Inc()
		logger.Warn("deal queue full, dropping persistent write", "round_id", deal.RoundID)
	}
}

// Recent returns deals newest first. The repo is preferred; the in-memory
// ring answers when there is no repo or it fails.
func (s *DealService) Recent(ctx context.Context, filter model.DealFilter) ([]model.Deal, error) {
	if s.repo != nil {
		deals, err := s.repo.Recent(ctx, filter)
		if err == nil {
			return deals, nil
		}
		logger.LogError(ctx, err, "deal repo query failed, serving from memory")
	}
	return s.buffer.List(filter), nil
}

func (s *DealService) processDeals() {
	defer close(s.done)
	var encoder *json.Encoder
	if s.logFile != nil {
		encoder = json.NewEncoder(s.logFile)
	}
	for deal := range s.dealChan {
		result := "ok"
		if s.repo != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := s.repo.Insert(ctx, deal); err != nil {
				result = "error"
				logger.Error("failed to persist deal", "round_id", deal.RoundID, "error", err)
			}
			cancel()
		}
		if encoder != nil {
			if err := encoder.Encode(deal); err != nil {
				result = "error"
				logger.Error("failed to journal deal", "round_id", deal.RoundID, "error", err)
			}
		}
		metrics.DealRecords.WithLabelValues(result).Inc()
	}
}

// Close drains queued deals and closes the journal.
func (s *DealService) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.dealChan)
	s.mu.Unlock()

	<-s.done
	if s.logFile != nil {
		s.logFile.Close()
	}
}

type dealBuffer struct {
	mu        sync.Mutex
	maxSize   int
	records   []*model.Deal
	nextIndex int
}

func newDealBuffer(maxSize int) *dealBuffer {
	if maxSize <= 0 {
		maxSize = 1000
	}
	return &dealBuffer{
		maxSize: maxSize,
		records: make([]*model.Deal, 0, maxSize),
	}
}

func (b *dealBuffer) Add(deal *model.Deal) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.records) < b.maxSize {
		b.records = append(b.records, deal)
		return
	}
	b.records[b.nextIndex] = deal
	b.nextIndex = (b.nextIndex + 1) % b.maxSize
}

func (b *dealBuffer) List(filter model.DealFilter) []model.Deal {
	b.mu.Lock()
	defer b.mu.Unlock()
	limit := filter.Limit
	if limit <= 0 || limit > b.maxSize {
		limit = b.maxSize
	}
	results := make([]model.Deal, 0, limit)
	total := len(b.records)
	for i := 0; i < total; i++ {
		idx := (b.nextIndex + total - 1 - i) % total
		deal := b.records[idx]
		if deal == nil || !filter.Match(deal) {
			continue
		}
		results = append(results, *deal)
		if len(results) >= limit {
			break
		}
	}
	return results
}
