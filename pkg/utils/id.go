package utils

import (
	"strings"

	"github.com/google/uuid"
)

// NewID 生成无连字符的 uuid，作为各实体主键
func NewID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
