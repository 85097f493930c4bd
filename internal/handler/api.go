package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/user/moviesearch/internal/middleware"
	"github.com/user/moviesearch/internal/service"
	"github.com/user/moviesearch/internal/utils"
)

type termRequest struct {
	Term string `json:"term" binding:"max=200"`
}

// SessionInput 输入框内容变化，交给防抖
func (h *Handler) SessionInput(c *gin.Context) {
	var req termRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "参数错误")
		return
	}
	p := h.Sessions.Get(middleware.GetSessionID(c))
	p.Input(req.Term)
	utils.Success(c, p.Snapshot())
}

// SessionSearch 立即查询（点击热搜词时）
func (h *Handler) SessionSearch(c *gin.Context) {
	var req termRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "参数错误")
		return
	}
	p := h.Sessions.Get(middleware.GetSessionID(c))
	p.SearchNow(req.Term)
	utils.Success(c, p.Snapshot())
}

// SessionState 当前会话状态
func (h *Handler) SessionState(c *gin.Context) {
	p := h.Sessions.Get(middleware.GetSessionID(c))
	utils.Success(c, p.Snapshot())
}

// Movies 无状态查询，空 query 返回 discover 列表
func (h *Handler) Movies(c *gin.Context) {
	out, err := h.Search.Run(c.Request.Context(), c.Query("query"))
	if err != nil {
		var upstream *service.UpstreamError
		if errors.As(err, &upstream) {
			utils.BadGateway(c, service.FetchErrorMessage, gin.H{"upstream_status": upstream.StatusCode})
			return
		}
		utils.BadGateway(c, service.FetchErrorMessage, nil)
		return
	}
	utils.Success(c, out)
}

// Trending 热搜榜，存储不可用时返回最近一次的榜单
func (h *Handler) Trending(c *gin.Context) {
	terms, _ := h.Search.Trending(c.Request.Context())
	utils.Success(c, terms)
}

// Health 健康检查
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
