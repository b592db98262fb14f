package bitmex

// State 流处理状态机
//
//	Connecting -> SubscriptionSent -> Streaming
//	Streaming | Connecting -> Reconnecting -> Connecting
type State int32

const (
	StateIdle State = iota
	StateConnecting
	StateSubscriptionSent
	StateStreaming
	StateReconnecting
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateSubscriptionSent:
		return "subscription_sent"
	case StateStreaming:
		return "streaming"
	case StateReconnecting:
		return "reconnecting"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}
