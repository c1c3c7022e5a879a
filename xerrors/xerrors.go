// Package xerrors 提供 fabric 统一的错误处理工具。
//
// 约定：
//   - 各包在 errors.go 中用 xerrors.New 声明哨兵错误
//   - 需要向上层暴露类别的错误用 WithCode 附加错误码
//   - 错误链始终保留，调用方用 Is / As 判断
package xerrors

import (
	"errors"
	"fmt"
)

// 错误码
const (
	CodeGeneration   = "GENERATION"    // 组合模型错误导致的生成失败
	CodeNotFound     = "NOT_FOUND"     // 资源或注册项不存在
	CodeInvalidInput = "INVALID_INPUT" // 参数或配置非法
	CodeTransport    = "TRANSPORT"     // 集群消息发送失败
)

// 共享的哨兵错误
var (
	ErrNotFound     = New("not found")
	ErrInvalidInput = New("invalid input")
	ErrClosed       = New("closed")
	ErrUnsupported  = New("unsupported")
)

// Wrap 包装错误并保留错误链，格式为 "msg: cause"
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// Wrapf 同 Wrap，消息支持格式化
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// WithCode 为错误附加错误码
func WithCode(err error, code string) error {
	if err == nil {
		return nil
	}
	return &CodedError{Code: code, Cause: err}
}

// Codedf 以哨兵错误为原因，创建带错误码和上下文的错误
//
//	xerrors.Codedf(CodeGeneration, ErrCallbackBindingNotSet, "reference %s", uri)
//	// [GENERATION] reference app/ref: callback binding not set
func Codedf(code string, cause error, format string, args ...any) error {
	return WithCode(Wrapf(cause, format, args...), code)
}

// CodedError 带有机器可读错误码的错误
type CodedError struct {
	Code  string
	Cause error
}

func (e *CodedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %v", e.Code, e.Cause)
	}
	return fmt.Sprintf("[%s]", e.Code)
}

func (e *CodedError) Unwrap() error {
	return e.Cause
}

// GetCode 从错误链中提取最外层的错误码
func GetCode(err error) string {
	var coded *CodedError
	if errors.As(err, &coded) {
		return coded.Code
	}
	return ""
}

// Must 如果 err 不为 nil 则 panic，仅用于初始化阶段
func Must[T any](v T, err error) T {
	if err != nil {
		panic(fmt.Sprintf("must: %v", err))
	}
	return v
}

// MustOK 如果 ok 为 false 则 panic
func MustOK[T any](v T, ok bool) T {
	if !ok {
		panic("assertion failed")
	}
	return v
}

// Collector 收集多个错误，保留第一个
type Collector struct {
	err error
}

func (c *Collector) Collect(err error) {
	if err != nil && c.err == nil {
		c.err = err
	}
}

func (c *Collector) Err() error {
	return c.err
}

// MultiError 合并多个错误
type MultiError struct {
	Errors []error
}

func (m *MultiError) Error() string {
	switch len(m.Errors) {
	case 0:
		return "no errors"
	case 1:
		return m.Errors[0].Error()
	default:
		return fmt.Sprintf("%v (and %d more errors)", m.Errors[0], len(m.Errors)-1)
	}
}

func (m *MultiError) Unwrap() []error {
	return m.Errors
}

// Combine 合并多个错误，忽略 nil
func Combine(errs ...error) error {
	var nonNil []error
	for _, err := range errs {
		if err != nil {
			nonNil = append(nonNil, err)
		}
	}
	switch len(nonNil) {
	case 0:
		return nil
	case 1:
		return nonNil[0]
	default:
		return &MultiError{Errors: nonNil}
	}
}

// 标准库函数再导出
var (
	New    = errors.New
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	Join   = errors.Join
)
