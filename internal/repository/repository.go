package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/user/moviesearch/internal/config"
	"github.com/user/moviesearch/internal/model"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.opentelemetry.io/contrib/instrumentation/go.mongodb.org/mongo-driver/mongo/otelmongo"
	"gorm.io/gorm"
)

// SearchTermStore 热搜词存储的统一接口
type SearchTermStore interface {
	FindByTerm(ctx context.Context, term string) (*model.SearchTerm, error)
	Create(ctx context.Context, st *model.SearchTerm) error
	Update(ctx context.Context, id string, count int, posterURL string) error
	ListTop(ctx context.Context, limit int) ([]model.SearchTerm, error)
	DeleteStale(ctx context.Context, days int) (int64, error)
}

var (
	_ SearchTermStore = (*SearchTermRepository)(nil)
	_ SearchTermStore = (*MongoSearchTermRepository)(nil)
	_ SearchTermStore = (*RedisSearchTermRepository)(nil)
)

// Repositories 仓库集合
type Repositories struct {
	SearchTerm SearchTermStore
	closeFn    func(ctx context.Context) error
}

// Open 按 STORE_DRIVER 初始化存储
func Open(ctx context.Context, cfg *config.Config) (*Repositories, error) {
	switch cfg.StoreDriver {
	case "mongo":
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		client, err := ConnectMongo(connectCtx, cfg.MongoURI, options.Client().SetMonitor(otelmongo.NewMonitor()))
		if err != nil {
			return nil, fmt.Errorf("无法连接 MongoDB: %w", err)
		}
		if err := client.Ping(connectCtx, nil); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, fmt.Errorf("MongoDB ping 失败: %w", err)
		}
		return newMongoRepositories(connectCtx, client, cfg.MongoDatabase, cfg.MongoCollection)

	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("Redis ping 失败: %w", err)
		}
		return &Repositories{
			SearchTerm: NewRedisSearchTermRepository(client),
			closeFn: func(context.Context) error {
				return client.Close()
			},
		}, nil

	case "postgres", "":
		db, err := InitDB(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return newPostgresRepositories(db)

	default:
		return nil, fmt.Errorf("不支持的存储驱动: %s", cfg.StoreDriver)
	}
}

// newMongoRepositories 索引创建失败时断开连接并返回错误
func newMongoRepositories(ctx context.Context, client *mongo.Client, database, collection string) (*Repositories, error) {
	repo := NewMongoSearchTermRepository(client, database, collection)
	if err := repo.EnsureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("创建 MongoDB 索引失败: %w", err)
	}
	return &Repositories{
		SearchTerm: repo,
		closeFn:    client.Disconnect,
	}, nil
}

func newPostgresRepositories(db *gorm.DB) (*Repositories, error) {
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("获取数据库连接池失败: %w", err)
	}
	return &Repositories{
		SearchTerm: NewSearchTermRepository(db),
		closeFn: func(context.Context) error {
			return sqlDB.Close()
		},
	}, nil
}

// Close 释放底层连接
func (r *Repositories) Close(ctx context.Context) error {
	if r == nil || r.closeFn == nil {
		return nil
	}
	return r.closeFn(ctx)
}
