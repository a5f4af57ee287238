//go:build integration

package docseq

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"livrocaixa/internal/core"
)

// Run with: REDIS_URL=redis://localhost:6379/15 go test -tags=integration ./internal/docseq

type fixedMax string

func (f fixedMax) MaxDocNo(context.Context, core.Date, core.Date) (string, error) {
	return string(f), nil
}

func TestIntegration_RedisAllocator(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set, skipping integration test")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		t.Fatal(err)
	}
	client := redis.NewClient(opts)
	defer client.Close()

	ctx := context.Background()
	month := core.MonthKey{Year: 1999, Month: time.December}
	client.Del(ctx, Key(month))
	defer client.Del(ctx, Key(month))

	a := NewRedisAllocator(client, fixedMax("004"), time.Minute)
	if n, err := a.Peek(ctx, month); err != nil || n != 5 {
		t.Fatalf("peek = %d, %v", n, err)
	}
	first, err := a.Reserve(ctx, month, 3)
	if err != nil || first != 5 {
		t.Fatalf("reserve = %d, %v", first, err)
	}
	if err := a.Observe(ctx, month, 20); err != nil {
		t.Fatal(err)
	}
	if n, _ := a.Reserve(ctx, month, 1); n != 21 {
		t.Fatalf("after observe = %d", n)
	}
}
