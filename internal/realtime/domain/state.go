package domain

// ConnState connection state machine
type ConnState int32

const (
	// StateDisconnected 初始狀態，或 Close 之後的終態
	StateDisconnected ConnState = iota
	// StateConnecting 握手中，斷線重連期間也會回到這個狀態
	StateConnecting
	// StateConnected 握手完成，可以 subscribe / publish
	StateConnected
	// StateError 憑證被拒或 broker 回報協議錯誤，不會自動重連
	StateError
)

func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}
