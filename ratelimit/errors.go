package ratelimit

import "github.com/ceyewan/fabric/xerrors"

var (
	// ErrKeyEmpty 限流键为空
	ErrKeyEmpty = xerrors.New("ratelimit: key is empty")

	// ErrInvalidLimit 规则的 Rate 或 Burst 不为正
	ErrInvalidLimit = xerrors.New("ratelimit: invalid limit")
)
