package api

import (
	"net"
	"net/http"

	"github.com/oriys/logdemo/internal/domain"
)

// unknownAddr 是无法得到客户端地址时使用的占位值
const unknownAddr = "unknown"

// LogRequests 是请求日志拦截器。
// 对每个请求（包括未匹配的路径）在路由处理之前发射一条 info 记录，
// 字段为 method、path、ip、userAgent。记录发射失败不会中断请求。
func (h *Handler) LogRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := domain.NewRequestRecord(h.now(), r.Method, r.URL.Path, clientIP(r), r.UserAgent())
		h.emit(r, rec)
		next.ServeHTTP(w, r)
	})
}

// clientIP 返回连接对端的地址，X-Forwarded-For 等请求头不参与判断。
// RemoteAddr 通常是 host:port，无法拆分时原样返回。
func clientIP(r *http.Request) string {
	if r.RemoteAddr == "" {
		return unknownAddr
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil || host == "" {
		return r.RemoteAddr
	}
	return host
}
