package connector

import (
	"fmt"

	"github.com/ceyewan/fabric/xerrors"
)

var (
	ErrNotConnected = xerrors.New("connector: not connected")
	ErrConnection   = xerrors.New("connector: connection failed")
	ErrConfig       = xerrors.New("connector: invalid config")
	ErrHealthCheck  = xerrors.New("connector: health check failed")
)

// wrapCause 同时保留哨兵错误和底层错误：nats connector[default]: connector: connection failed: <cause>
func wrapCause(kind, name string, sentinel, cause error) error {
	return fmt.Errorf("%s connector[%s]: %w: %w", kind, name, sentinel, cause)
}
