// Package response 统一信封：HTTP 状态恒为 200，业务结果看 code 字段。
package response

// 业务码直接沿用 HTTP 语义，0 表示成功
const (
	CodeOK           = 0
	CodeBadRequest   = 400
	CodeUnauthorized = 401
	CodeForbidden    = 403
	CodeNotFound     = 404
	CodeTimeout      = 408
	CodeConflict     = 409
	CodeServerError  = 500
	CodeUnavailable  = 503
)

var codeMsg = map[int]string{
	CodeOK:           "OK",
	CodeBadRequest:   "Bad Request",
	CodeUnauthorized: "Unauthorized",
	CodeForbidden:    "Forbidden",
	CodeNotFound:     "Not Found",
	CodeTimeout:      "Request Timeout",
	CodeConflict:     "Conflict",
	CodeServerError:  "Internal Server Error",
	CodeUnavailable:  "Service Unavailable",
}

// Msg 码的默认文案，未知码回退到服务器错误文案
func Msg(code int) string {
	if m, ok := codeMsg[code]; ok {
		return m
	}
	return codeMsg[CodeServerError]
}

type Resp struct {
	Code int         `json:"code"`
	Msg  string      `json:"msg"`
	Data interface{} `json:"data"`
}

// New 保证 data 不序列化成 null
func New(code int, msg string, data interface{}) Resp {
	if data == nil {
		data = struct{}{}
	}
	return Resp{Code: code, Msg: msg, Data: data}
}

func OK(data interface{}) Resp {
	return New(CodeOK, Msg(CodeOK), data)
}

// Error 传入非空 customMsg 时覆盖默认文案
func Error(code int, customMsg string) Resp {
	msg := Msg(code)
	if customMsg != "" {
		msg = customMsg
	}
	return New(code, msg, struct{}{})
}
