package youtube

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
)

const defaultCacheTTL = 30 * time.Minute

// CachedClient 带 Redis 缓存的评论抓取客户端。
// 同一视频短时间内重复分析时命中缓存，显著降低 API 配额消耗。
type CachedClient struct {
	client *Client
	rdb    *redis.Client
	ttl    time.Duration
}

func NewCachedClient(client *Client, rdb *redis.Client, ttlMinutes int) *CachedClient {
	ttl := defaultCacheTTL
	if ttlMinutes > 0 {
		ttl = time.Duration(ttlMinutes) * time.Minute
	}
	return &CachedClient{client: client, rdb: rdb, ttl: ttl}
}

// FetchComments 先查缓存，未命中再走 API
func (c *CachedClient) FetchComments(ctx context.Context, req *FetchRequest) (*FetchResult, error) {
	videoID, err := ExtractVideoID(req.VideoURLOrID)
	if err != nil {
		return nil, err
	}

	key := cacheKey(videoID, req)

	if c.rdb != nil {
		cached, err := c.rdb.Get(ctx, key).Result()
		if err == nil {
			var result FetchResult
			if err := json.Unmarshal([]byte(cached), &result); err == nil {
				log.Printf("Comment cache hit for video %s", videoID)
				return &result, nil
			}
			// 缓存数据损坏，当作未命中
		} else if err != redis.Nil {
			log.Printf("Comment cache read error for video %s: %v", videoID, err)
		}
	}

	result, err := c.client.FetchComments(ctx, req)
	if err != nil {
		return nil, err
	}

	if c.rdb != nil {
		if data, err := json.Marshal(result); err == nil {
			if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
				log.Printf("Comment cache write error for video %s: %v", videoID, err)
			}
		}
	}

	return result, nil
}

func cacheKey(videoID string, req *FetchRequest) string {
	return fmt.Sprintf("yt:comments:%s:%s:%d:%d:%t",
		videoID, req.Order, req.MaxComments, req.MinLikes, req.ExcludeSpam)
}
