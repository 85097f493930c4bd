package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata" // 确保在精简镜像中也能识别时区

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/user/moviesearch/internal/config"
	"github.com/user/moviesearch/internal/handler"
	"github.com/user/moviesearch/internal/metrics"
	"github.com/user/moviesearch/internal/repository"
	"github.com/user/moviesearch/internal/router"
	"github.com/user/moviesearch/internal/service"
	"github.com/user/moviesearch/internal/telemetry"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	// 加载环境变量
	if err := godotenv.Load(); err != nil {
		log.Println("未找到 .env 文件，使用系统环境变量")
	}

	// 加载配置
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("%v", err)
	}

	metrics.Register(prometheus.DefaultRegisterer)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	shutdownTracer, err := telemetry.Init(ctx, "moviesearch", cfg.OTelEndpoint)
	if err != nil {
		log.Fatalf("链路追踪初始化失败: %v", err)
	}

	// 初始化存储
	repos, err := repository.Open(ctx, cfg)
	if err != nil {
		log.Fatalf("存储初始化失败: %v", err)
	}
	log.Printf("存储驱动: %s", cfg.StoreDriver)

	// 初始化服务
	tmdb := service.NewTMDBService(cfg)
	search := service.NewSearchService(
		tmdb,
		service.NewRankRecorder(repos.SearchTerm),
		service.NewTrendingReader(repos.SearchTerm, cfg.TrendingLimit),
		cfg.TMDBImageBaseURL,
	)
	sessions := service.NewSessionRegistry(cfg.SessionIdleTTL, func() *service.Pipeline {
		return service.NewPipeline(search, cfg.DebounceQuiet)
	})

	// 启动定时清理任务
	service.NewCleanupService(repos.SearchTerm, cfg.TermRetentionDays).Start(ctx)

	// 初始化 Handler 并注册路由
	h := handler.NewHandler(cfg, search, sessions)
	r := router.NewEngine(cfg, h)

	srv := &http.Server{
		Addr:           ":" + cfg.Port,
		Handler:        otelhttp.NewHandler(r, "moviesearch"),
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   cfg.TMDBTimeout + 10*time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	// 在 goroutine 中启动服务器，这样我们就可以监听信号
	go func() {
		log.Printf("服务器启动于 http://localhost:%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("服务器启动失败: %v", err)
		}
	}()

	// 等待中断信号以优雅地关闭服务器
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("正在关闭服务器...")

	// 5 秒超时上下文用于关闭过程
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("服务器强制关闭: %v", err)
	}

	stop()
	sessions.Close()
	if err := repos.Close(shutdownCtx); err != nil {
		log.Printf("关闭存储失败: %v", err)
	}
	if err := shutdownTracer(shutdownCtx); err != nil {
		log.Printf("关闭链路追踪失败: %v", err)
	}

	log.Println("服务器已退出")
}
