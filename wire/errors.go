package wire

import "github.com/ceyewan/fabric/xerrors"

// 生成错误均带 xerrors.CodeGeneration，表示组合模型本身有问题
var (
	ErrCallbackServiceNotFound = xerrors.New("callback service not found")
	ErrCallbackBindingNotSet   = xerrors.New("callback binding not set")
	ErrNoCallbackContract      = xerrors.New("contract declares no callback")
	ErrTargetBindingNotSet     = xerrors.New("target binding not set")
	ErrOperationNotFound       = xerrors.New("target operation not found")
	ErrOperationMismatch       = xerrors.New("operation signature mismatch")
)
