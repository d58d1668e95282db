package upstream

import "context"

// Endpoint couples the target of one provider call with the parser for its
// response body.
type Endpoint[T any] interface {
	Request() (Request, error)
	Parse(body []byte) (T, error)
}

// Fetch runs ep through ex and parses the first successful body.
func Fetch[T any](ctx context.Context, ex *Executor, ep Endpoint[T]) (T, error) {
	var zero T
	req, err := ep.Request()
	if err != nil {
		return zero, err
	}
	body, err := ex.Do(ctx, req)
	if err != nil {
		return zero, err
	}
	return ep.Parse(body)
}
