package goid

import (
	"bytes"
	"runtime"
	"strconv"
)

var stackPrefix = []byte("goroutine ")

// GetGID 当前 goroutine 的 ID，仅用于日志关联；解析失败返回 0
func GetGID() uint64 {
	var buf [64]byte
	// 栈首行: "goroutine 123 [running]:"
	b := bytes.TrimPrefix(buf[:runtime.Stack(buf[:], false)], stackPrefix)
	if i := bytes.IndexByte(b, ' '); i > 0 {
		b = b[:i]
	}
	id, err := strconv.ParseUint(string(b), 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// String 十进制形式，日志字段使用
func String() string {
	return strconv.FormatUint(GetGID(), 10)
}
