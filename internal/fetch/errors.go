package fetch

import (
	"context"
	"errors"
	"fmt"
	"net"
)

var (
	// ErrRedirectLoop 重定向跳数超过上限
	ErrRedirectLoop = errors.New("重定向次数过多")

	// ErrTimeout 请求或传输超时
	ErrTimeout = errors.New("请求超时")

	// ErrNetwork 其他网络层错误(DNS、连接被拒绝、TLS等)
	ErrNetwork = errors.New("网络错误")
)

// HTTPStatusError 最终响应状态码不是2xx
type HTTPStatusError struct {
	Code int
	URL  string
}

// Error 实现error接口
func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("HTTP %d", e.Code)
}

// IsHTTPStatus 判断错误是否为指定状态码的HTTPStatusError
func IsHTTPStatus(err error, code int) bool {
	var statusErr *HTTPStatusError
	return errors.As(err, &statusErr) && statusErr.Code == code
}

// classifyError 将客户端错误归类为 ErrRedirectLoop / ErrTimeout / ErrNetwork
// 调用方取消(context.Canceled)原样返回
func classifyError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrRedirectLoop) || errors.Is(err, ErrTimeout) || errors.Is(err, ErrNetwork) {
		return err
	}
	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		return err
	}
	if errors.Is(err, context.Canceled) {
		return err
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %w", ErrNetwork, err)
}
