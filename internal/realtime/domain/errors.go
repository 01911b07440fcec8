package domain

import (
	"errors"
	"fmt"
)

// ErrNotConnected publish/send 在非 connected 狀態被呼叫
var ErrNotConnected = errors.New("not connected to broker")

// ErrEmptyContent send 的內容 trim 之後是空的
var ErrEmptyContent = errors.New("message content is empty")

// ErrClosed 對已經 Close 的物件操作
var ErrClosed = errors.New("already closed")

// ConnectError 握手失敗。CredentialRejected 區分憑證被拒與網路因素：
// 憑證被拒不能重試，網路因素交給重連循環
type ConnectError struct {
	Cause              error
	CredentialRejected bool
}

func (e *ConnectError) Error() string {
	if e.CredentialRejected {
		return fmt.Sprintf("connect rejected by broker: %v", e.Cause)
	}
	return fmt.Sprintf("connect failed: %v", e.Cause)
}

func (e *ConnectError) Unwrap() error { return e.Cause }

// TransportDropError 已建立的連線中斷，重連循環會接手
type TransportDropError struct {
	Cause error
}

func (e *TransportDropError) Error() string {
	return fmt.Sprintf("transport dropped: %v", e.Cause)
}

func (e *TransportDropError) Unwrap() error { return e.Cause }

// DecodeError 收到的 frame body 不是合法 JSON 或缺欄位。
// 策略：丟棄該 frame 並記 log，不影響連線
type DecodeError struct {
	Destination string
	Cause       error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode frame on %s: %v", e.Destination, e.Cause)
}

func (e *DecodeError) Unwrap() error { return e.Cause }
