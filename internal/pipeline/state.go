package pipeline

import (
	"sync"

	"github.com/iabetor/rsswecom/internal/logger"
)

// State 表示编排器的当前运行状态。
type State int

const (
	// StateIdle — 空闲。
	StateIdle State = iota
	// StateIngesting — 正在抓取并保存订阅源。
	StateIngesting
	// StatePushing — 正在逐条推送到企业微信。
	StatePushing
)

var stateNames = [...]string{
	"Idle",
	"Ingesting",
	"Pushing",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "Unknown"
}

// StateMachine 管理线程安全的状态转换。
type StateMachine struct {
	mu       sync.RWMutex
	current  State
	onChange func(from, to State)
}

// NewStateMachine 创建一个初始状态为 Idle 的状态机。
func NewStateMachine() *StateMachine {
	return &StateMachine{
		current: StateIdle,
	}
}

// SetOnChange 注册状态变化时的回调函数。
func (sm *StateMachine) SetOnChange(fn func(from, to State)) {
	sm.mu.Lock()
	sm.onChange = fn
	sm.mu.Unlock()
}

// Current 返回当前状态。
func (sm *StateMachine) Current() State {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.current
}

// Transition 尝试切换状态。只有合法的转换才会生效：
//
//	Idle      → Ingesting
//	Idle      → Pushing
//	Ingesting → Idle
//	Pushing   → Idle
//
// 抓取和推送互斥，不能直接互相切换。
func (sm *StateMachine) Transition(to State) bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if !validTransition(sm.current, to) {
		logger.Warnf("[state] 非法转换 %s → %s", sm.current, to)
		return false
	}

	from := sm.current
	sm.current = to
	logger.Debugf("[state] %s → %s", from, to)

	if sm.onChange != nil {
		sm.onChange(from, to)
	}
	return true
}

// validTransition 检查状态转换是否合法。
func validTransition(from, to State) bool {
	if from == to {
		return false
	}
	if to == StateIdle {
		return true
	}
	return from == StateIdle
}
