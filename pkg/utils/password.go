package utils

import "golang.org/x/crypto/bcrypt"

// HashPassword bcrypt 默认代价。入参已在绑定层校验非空，
// 生成只会因代价越界失败，这里不可能触发。
func HashPassword(pw string) string {
	hash, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	if err != nil {
		return ""
	}
	return string(hash)
}

// CheckPassword 恒定时间比较，空哈希（播种未配管理员口令等）必然不匹配
func CheckPassword(pw, hashed string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(pw)) == nil
}
