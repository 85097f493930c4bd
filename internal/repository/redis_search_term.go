package repository

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/user/moviesearch/internal/model"
)

const redisKeyPrefix = "moviesearch:"

// RedisSearchTermRepository 基于 Redis 的热搜词存储
//
// 每个词一个 hash，另有两个有序集合分别按次数和更新时间索引，词本身即 ID
type RedisSearchTermRepository struct {
	client *redis.Client
	prefix string
}

func NewRedisSearchTermRepository(client *redis.Client) *RedisSearchTermRepository {
	return NewRedisSearchTermRepositoryWithPrefix(client, redisKeyPrefix)
}

// NewRedisSearchTermRepositoryWithPrefix 自定义键前缀，测试时用来隔离数据
func NewRedisSearchTermRepositoryWithPrefix(client *redis.Client, prefix string) *RedisSearchTermRepository {
	return &RedisSearchTermRepository{client: client, prefix: prefix}
}

func (r *RedisSearchTermRepository) termKey(term string) string {
	return r.prefix + "term:" + term
}

func (r *RedisSearchTermRepository) rankKey() string {
	return r.prefix + "terms:count"
}

func (r *RedisSearchTermRepository) updatedKey() string {
	return r.prefix + "terms:updated"
}

func (r *RedisSearchTermRepository) FindByTerm(ctx context.Context, term string) (*model.SearchTerm, error) {
	fields, err := r.client.HGetAll(ctx, r.termKey(term)).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, nil
	}
	st := termFromHash(term, fields)
	return &st, nil
}

// writeTermScript 在一次原子操作里写 hash 和两个索引
// ARGV[5] 为 "create" 时要求词不存在，否则要求词已存在；条件不满足返回 0
var writeTermScript = redis.NewScript(`
local exists = redis.call("EXISTS", KEYS[1]) == 1
if (ARGV[5] == "create") == exists then
	return 0
end
redis.call("HSET", KEYS[1], "term", ARGV[1], "count", ARGV[2], "poster_url", ARGV[3], "updated_at", ARGV[4])
redis.call("ZADD", KEYS[2], ARGV[2], ARGV[1])
redis.call("ZADD", KEYS[3], ARGV[4], ARGV[1])
return 1
`)

func (r *RedisSearchTermRepository) Create(ctx context.Context, st *model.SearchTerm) error {
	now := time.Now().UTC()
	ok, err := r.write(ctx, "create", st.Term, st.Count, st.PosterURL, now)
	if err != nil {
		return err
	}
	if !ok {
		return ErrDuplicateTerm
	}
	st.ID = st.Term
	st.UpdatedAt = time.Unix(now.Unix(), 0).UTC()
	return nil
}

func (r *RedisSearchTermRepository) Update(ctx context.Context, id string, count int, posterURL string) error {
	ok, err := r.write(ctx, "update", id, count, posterURL, time.Now().UTC())
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

func (r *RedisSearchTermRepository) write(ctx context.Context, mode, term string, count int, posterURL string, now time.Time) (bool, error) {
	keys := []string{r.termKey(term), r.rankKey(), r.updatedKey()}
	n, err := writeTermScript.Run(ctx, r.client, keys, term, count, posterURL, now.Unix(), mode).Int()
	if err != nil {
		return false, fmt.Errorf("写入热搜词失败: %w", err)
	}
	return n == 1, nil
}

func (r *RedisSearchTermRepository) ListTop(ctx context.Context, limit int) ([]model.SearchTerm, error) {
	if limit <= 0 {
		return []model.SearchTerm{}, nil
	}
	members, err := r.client.ZRevRange(ctx, r.rankKey(), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}

	cmds := make([]*redis.MapStringStringCmd, len(members))
	_, err = r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, term := range members {
			cmds[i] = pipe.HGetAll(ctx, r.termKey(term))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	terms := make([]model.SearchTerm, 0, len(members))
	for i, term := range members {
		fields := cmds[i].Val()
		// 索引里有但 hash 已被清理
		if len(fields) == 0 {
			continue
		}
		terms = append(terms, termFromHash(term, fields))
	}
	return terms, nil
}

func (r *RedisSearchTermRepository) DeleteStale(ctx context.Context, days int) (int64, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -days).Unix()
	stale, err := r.client.ZRangeByScore(ctx, r.updatedKey(), &redis.ZRangeBy{
		Min: "-inf",
		Max: "(" + strconv.FormatInt(cutoff, 10),
	}).Result()
	if err != nil {
		return 0, err
	}
	if len(stale) == 0 {
		return 0, nil
	}

	keys := make([]string, len(stale))
	members := make([]interface{}, len(stale))
	for i, term := range stale {
		keys[i] = r.termKey(term)
		members[i] = term
	}

	var deleted *redis.IntCmd
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		deleted = pipe.Del(ctx, keys...)
		pipe.ZRem(ctx, r.rankKey(), members...)
		pipe.ZRem(ctx, r.updatedKey(), members...)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return deleted.Val(), nil
}

func termFromHash(term string, fields map[string]string) model.SearchTerm {
	count, _ := strconv.Atoi(fields["count"])
	updated, _ := strconv.ParseInt(fields["updated_at"], 10, 64)
	return model.SearchTerm{
		ID:        term,
		Term:      term,
		Count:     count,
		PosterURL: fields["poster_url"],
		UpdatedAt: time.Unix(updated, 0).UTC(),
	}
}
