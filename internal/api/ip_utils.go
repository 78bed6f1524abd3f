package api

import (
	"net"
	"net/http"
	"strings"
)

// 解析访问者 IP：优先参数，其次常见反向代理头；保证在多层代理场景下稳定获取源 IP
func getClientIP(r *http.Request) string {
	if q := r.URL.Query().Get("ip"); q != "" {
		return q
	}
	h := r.Header
	if x := h.Get("x-forwarded-for"); x != "" {
		return strings.TrimSpace(strings.Split(x, ",")[0])
	}
	if x := h.Get("x-real-ip"); x != "" {
		return x
	}
	if x := h.Get("forwarded"); x != "" {
		i := strings.Index(strings.ToLower(x), "for=")
		if i >= 0 {
			y := x[i+4:]
			y = strings.Trim(y, "\" ")
			if p := strings.IndexByte(y, ';'); p >= 0 {
				y = y[:p]
			}
			if p := strings.IndexByte(y, ','); p >= 0 {
				y = y[:p]
			}
			return y
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// normalizeIP：空值与本机地址统一归为空串，交给远端数据源自动探测
func normalizeIP(ip string) string {
	ip = strings.TrimSpace(ip)
	switch ip {
	case "", "127.0.0.1", "localhost", "::1":
		return ""
	}
	return ip
}

// isLoopback：RemoteAddr 提取出的回环地址对定位无意义
func isLoopback(ip string) bool {
	p := net.ParseIP(ip)
	return p != nil && p.IsLoopback()
}
