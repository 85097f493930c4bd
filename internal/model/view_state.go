package model

// Phase 单个会话搜索流水线所处阶段
type Phase string

const (
	PhaseIdle        Phase = "idle"
	PhaseDebouncing  Phase = "debouncing"
	PhaseDispatching Phase = "dispatching"
	PhaseRecording   Phase = "recording"
	PhaseRefreshing  Phase = "refreshing"
)

// ViewState 会话可见状态快照
type ViewState struct {
	SearchTerm   string        `json:"search_term"`
	Phase        Phase         `json:"phase"`
	Loading      bool          `json:"loading"`
	ErrorMessage string        `json:"error_message"`
	Movies       []MovieResult `json:"movies"`
	Trending     []SearchTerm  `json:"trending"`
	Seq          uint64        `json:"seq"`
}
