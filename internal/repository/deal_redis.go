package repository

import (
	"context"
	"encoding/json"

	"github.com/GoPolymarket/dutchauction/internal/model"
)

// RedisDealRepo keeps the most recent deals in a capped Redis list, newest at
// the head.
type RedisDealRepo struct {
	client  *RedisClient
	listKey string
	seqKey  string
	listMax int
}

func NewRedisDealRepo(client *RedisClient, listKey string, listMax int) *RedisDealRepo {
	if listKey == "" {
		listKey = "auction:deals"
	}
	if listMax <= 0 {
		listMax = 10000
	}
	return &RedisDealRepo{
		client:  client,
		listKey: listKey,
		seqKey:  listKey + ":seq",
		listMax: listMax,
	}
}

func (r *RedisDealRepo) Insert(ctx context.Context, deal *model.Deal) error {
	if deal == nil {
		return nil
	}
	id, err := r.client.Client.Incr(ctx, r.seqKey).Result()
	if err != nil {
		return err
	}
	stored := *deal
	stored.ID = uint64(id)
	payload, err := json.Marshal(stored)
	if err != nil {
		return err
	}

	pipe := r.client.Client.TxPipeline()
	pipe.LPush(ctx, r.listKey, payload)
	pipe.LTrim(ctx, r.listKey, 0, int64(r.listMax-1))
	_, err = pipe.Exec(ctx)
	return err
}

func (r *RedisDealRepo) Recent(ctx context.Context, filter model.DealFilter) ([]model.Deal, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	fetch := limit
	if filter.WinnerID != "" || filter.From != nil || filter.To != nil {
		fetch = limit * 5
		if fetch < 100 {
			fetch = 100
		}
	}
	if fetch > r.listMax {
		fetch = r.listMax
	}

	items, err := r.client.Client.LRange(ctx, r.listKey, 0, int64(fetch-1)).Result()
	if err != nil {
		return nil, err
	}
	results := make([]model.Deal, 0, limit)
	for _, raw := range items {
		var deal model.Deal
		if err := json.Unmarshal([]byte(raw), &deal); err != nil {
			continue
		}
		if !filter.Match(&deal) {
			continue
		}
		results = append(results, deal)
		if len(results) >= limit {
			break
		}
	}
	return results, nil
}
