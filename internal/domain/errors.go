package domain

import (
	"errors"
	"fmt"
)

// 错误全集是稳定的小集合，存储驱动原始错误不外泄
var (
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("conflict")
	ErrValidation         = errors.New("validation failed")
	ErrStorageUnavailable = errors.New("storage unavailable")
	// ErrStockLimit 加购数量被钳到当前库存时返回，购物车仍按钳位值持久化
	ErrStockLimit = errors.New("stock limit reached")
)

// PartialAggregateError 主写成功、派生聚合写失败。只记日志，
// 不作为操作失败上抛，下次全量重算路径自愈。
type PartialAggregateError struct {
	Entity string
	ID     string
	Err    error
}

func (e *PartialAggregateError) Error() string {
	return fmt.Sprintf("partial aggregate write: %s %s: %v", e.Entity, e.ID, e.Err)
}

func (e *PartialAggregateError) Unwrap() error { return e.Err }

func Conflictf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrConflict}, args...)...)
}

func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrValidation}, args...)...)
}
