package handler

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/user/moviesearch/internal/middleware"
	"github.com/user/moviesearch/internal/model"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 30 * time.Second
	wsReadLimit  = 1024
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

// wsCommand 客户端消息：{"type":"input"|"search","term":"..."}
type wsCommand struct {
	Type string `json:"type"`
	Term string `json:"term"`
}

type wsMessage struct {
	Type string          `json:"type"`
	Data model.ViewState `json:"data"`
}

// SessionStream 通过 WebSocket 推送会话状态，并接收输入
func (h *Handler) SessionStream(c *gin.Context) {
	sessionID := middleware.GetSessionID(c)
	p := h.Sessions.Get(sessionID)

	upgrader := wsUpgrader
	if h.Config != nil && h.Config.Env != "production" {
		// 非生产环境允许任意来源
		upgrader.CheckOrigin = func(*http.Request) bool { return true }
	}
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("[WS] 升级连接失败: %v", err)
		return
	}
	defer conn.Close()

	changes, unwatch := p.Watch()
	defer unwatch()

	// 读循环：处理输入，连接断开时通知写循环退出
	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadLimit(wsReadLimit)
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(wsPongWait))
		})
		for {
			var cmd wsCommand
			if err := conn.ReadJSON(&cmd); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Printf("[WS] 读取消息失败: %v", err)
				}
				return
			}
			// 每条消息都为会话续期
			h.Sessions.Touch(sessionID)
			switch cmd.Type {
			case "input":
				p.Input(cmd.Term)
			case "search":
				// SearchNow 会同步等待查询完成，不能阻塞读循环
				go p.SearchNow(cmd.Term)
			}
		}
	}()

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	write := func() bool {
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		return conn.WriteJSON(wsMessage{Type: "state", Data: p.Snapshot()}) == nil
	}
	if !write() {
		return
	}

	for {
		select {
		case <-done:
			return
		case _, ok := <-changes:
			if !ok {
				// 会话已过期
				_ = conn.WriteControl(
					websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "session expired"),
					time.Now().Add(wsWriteWait),
				)
				return
			}
			if !write() {
				return
			}
		case <-ticker.C:
			// 连接保持期间会话不过期
			h.Sessions.Touch(sessionID)
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
