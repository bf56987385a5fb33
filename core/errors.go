package core

import (
	"errors"
	"fmt"
)

// DomainError 是领域层的统一错误类型。
//
// 设计原则：
//   - 所有领域层错误都使用此类型
//   - 提供错误代码（Code）和消息（Message）
//   - 支持 errors.Is / errors.As，被 %w 包装后仍可识别
//
// 错误分类（调用方均可恢复，预期的恢复路径是回退到热门推荐）：
//   - NOT_FOUND：物品/用户 ID 不存在
//   - EMPTY_PROFILE：评分为空或全为 0，无法构建用户画像
//   - INVALID_RANK：矩阵分解的秩配置错误
//   - UNKNOWN_USER：冷启动用户，不在分解后的矩阵中
type DomainError struct {
	Code    string // 错误代码（如 "NOT_FOUND", "UNKNOWN_USER"）
	Message string // 错误消息
	Module  string // 模块名称（如 "feature", "cf"）
}

func (e *DomainError) Error() string {
	return e.Message
}

// Is 按 Code 匹配；target 的 Module 为空时匹配任意模块。
// 因此 errors.Is(err, core.ErrUnknownUser) 对任何模块产生的 UNKNOWN_USER 都成立。
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	if t.Code != e.Code {
		return false
	}
	return t.Module == "" || t.Module == e.Module
}

// IsDomainError 检查错误链中是否存在 DomainError
func IsDomainError(err error) bool {
	return GetDomainError(err) != nil
}

// GetDomainError 获取错误链中的 DomainError，如果不存在则返回 nil
func GetDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return nil
}

// NewDomainError 创建新的领域错误
func NewDomainError(module, code, message string) *DomainError {
	return &DomainError{
		Module:  module,
		Code:    code,
		Message: message,
	}
}

// 错误代码常量
const (
	ErrorCodeNotFound      = "NOT_FOUND"      // 资源不存在
	ErrorCodeEmptyProfile  = "EMPTY_PROFILE"  // 无可用评分信号
	ErrorCodeInvalidRank   = "INVALID_RANK"   // 分解秩配置错误
	ErrorCodeUnknownUser   = "UNKNOWN_USER"   // 冷启动用户
	ErrorCodeNotSupported  = "NOT_SUPPORTED"  // 操作不支持
	ErrorCodeUnavailable   = "UNAVAILABLE"    // 服务不可用
	ErrorCodeInvalidInput  = "INVALID_INPUT"  // 输入无效
	ErrorCodeInternalError = "INTERNAL_ERROR" // 内部错误
)

// 模块名称常量
const (
	ModuleStore      = "store"      // 存储模块
	ModuleFeature    = "feature"    // 特征库
	ModuleContent    = "content"    // 基于内容的推荐
	ModuleCF         = "cf"         // 协同过滤
	ModulePopularity = "popularity" // 热门推荐
	ModuleHybrid     = "hybrid"     // 混合推荐
	ModuleService    = "service"    // 服务模块
)

// 可与 errors.Is 配合使用的哨兵错误（不限定模块）
var (
	ErrNotFound     = &DomainError{Code: ErrorCodeNotFound, Message: "not found"}
	ErrEmptyProfile = &DomainError{Code: ErrorCodeEmptyProfile, Message: "empty profile"}
	ErrInvalidRank  = &DomainError{Code: ErrorCodeInvalidRank, Message: "invalid rank"}
	ErrUnknownUser  = &DomainError{Code: ErrorCodeUnknownUser, Message: "unknown user"}
	ErrInvalidInput = &DomainError{Code: ErrorCodeInvalidInput, Message: "invalid input"}
)

// NewNotFoundError 创建 NOT_FOUND 错误，kind 为 "item" / "user" 等。
func NewNotFoundError(module, kind, id string) *DomainError {
	return NewDomainError(module, ErrorCodeNotFound, fmt.Sprintf("%s: %s %q not found", module, kind, id))
}

// NewEmptyProfileError 创建 EMPTY_PROFILE 错误
func NewEmptyProfileError(module, reason string) *DomainError {
	return NewDomainError(module, ErrorCodeEmptyProfile, fmt.Sprintf("%s: empty profile: %s", module, reason))
}

// NewInvalidRankError 创建 INVALID_RANK 错误，要求 0 < k < min(rows, cols)
func NewInvalidRankError(module string, k, rows, cols int) *DomainError {
	return NewDomainError(module, ErrorCodeInvalidRank,
		fmt.Sprintf("%s: rank %d out of range for %dx%d matrix (need 0 < k < %d)", module, k, rows, cols, min(rows, cols)))
}

// NewUnknownUserError 创建 UNKNOWN_USER 错误
func NewUnknownUserError(module, userID string) *DomainError {
	return NewDomainError(module, ErrorCodeUnknownUser, fmt.Sprintf("%s: user %q absent from factorized matrix", module, userID))
}

// NewInvalidInputError 创建 INVALID_INPUT 错误
func NewInvalidInputError(module, message string) *DomainError {
	return NewDomainError(module, ErrorCodeInvalidInput, module+": "+message)
}

func hasCode(err error, code string) bool {
	if domainErr := GetDomainError(err); domainErr != nil {
		return domainErr.Code == code
	}
	return false
}

// IsNotFound 检查错误是否为 NOT_FOUND
func IsNotFound(err error) bool { return hasCode(err, ErrorCodeNotFound) }

// IsEmptyProfile 检查错误是否为 EMPTY_PROFILE
func IsEmptyProfile(err error) bool { return hasCode(err, ErrorCodeEmptyProfile) }

// IsInvalidRank 检查错误是否为 INVALID_RANK
func IsInvalidRank(err error) bool { return hasCode(err, ErrorCodeInvalidRank) }

// IsUnknownUser 检查错误是否为 UNKNOWN_USER
func IsUnknownUser(err error) bool { return hasCode(err, ErrorCodeUnknownUser) }

// IsInvalidInput 检查错误是否为 INVALID_INPUT
func IsInvalidInput(err error) bool { return hasCode(err, ErrorCodeInvalidInput) }

// IsNotSupported 检查错误是否为 NOT_SUPPORTED
func IsNotSupported(err error) bool { return hasCode(err, ErrorCodeNotSupported) }

// IsRecoverable 报告错误是否属于可通过热门推荐兜底的类别。
func IsRecoverable(err error) bool {
	return IsNotFound(err) || IsEmptyProfile(err) || IsUnknownUser(err)
}
