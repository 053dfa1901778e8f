package httpclient

import "context"

// Response is the part of an HTTP response callers read: status and fully buffered body.
type Response interface {
	Body() []byte
	StatusCode() int
}

// Client issues single GET requests. Implementations must not retry.
type Client interface {
	Get(ctx context.Context, url string, headers map[string]string) (Response, error)
}
