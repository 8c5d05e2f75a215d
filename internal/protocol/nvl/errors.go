package nvl

import (
	"errors"
	"fmt"
)

var (
	// ErrShortHeader 数据报不足一个完整报文头
	ErrShortHeader = errors.New("nvl: datagram shorter than header")
	// ErrPacketLoss 分片序号出现空洞，整条逻辑报文被丢弃
	ErrPacketLoss = errors.New("nvl: sub-index gap, message discarded")
	// ErrUnregisteredList 收到未注册列表的数据，缓冲被丢弃
	ErrUnregisteredList = errors.New("nvl: no listener for list")
	// ErrSizeMismatch 重组字节数超过期望长度
	ErrSizeMismatch = errors.New("nvl: assembled bytes exceed expected length")
	// ErrConvert 重组完成但值转换失败
	ErrConvert = errors.New("nvl: value conversion failed")
	// ErrElementRange 字段描述越界，超出原始缓冲
	ErrElementRange = errors.New("nvl: element out of buffer range")
)

// LossError 带上下文的丢包错误，Unwrap 到 ErrPacketLoss。
// Expected/Received 为分片序号（subIndex）
type LossError struct {
	ListID   uint16
	Counter  uint16
	Expected uint16
	Received uint16
}

func (e *LossError) Error() string {
	return fmt.Sprintf("list %d counter %d sub %d after %d: %v",
		e.ListID, e.Counter, e.Received, e.Expected-1, ErrPacketLoss)
}

func (e *LossError) Unwrap() error { return ErrPacketLoss }
