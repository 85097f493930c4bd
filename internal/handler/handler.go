package handler

import (
	"github.com/user/moviesearch/internal/config"
	"github.com/user/moviesearch/internal/service"
)

// Handler HTTP 处理器
type Handler struct {
	Config   *config.Config
	Search   *service.SearchService
	Sessions *service.SessionRegistry
}

// NewHandler 创建处理器
func NewHandler(cfg *config.Config, search *service.SearchService, sessions *service.SessionRegistry) *Handler {
	return &Handler{
		Config:   cfg,
		Search:   search,
		Sessions: sessions,
	}
}
