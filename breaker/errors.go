package breaker

import "github.com/ceyewan/fabric/xerrors"

var (
	// ErrKeyEmpty 熔断键为空
	ErrKeyEmpty = xerrors.New("breaker: key is empty")

	// ErrOpenState 熔断器处于打开状态
	ErrOpenState = xerrors.New("breaker: circuit breaker is open")

	// ErrInvalidRatio 失败率超出 (0, 1]
	ErrInvalidRatio = xerrors.New("breaker: failure ratio must be within (0, 1]")
)
