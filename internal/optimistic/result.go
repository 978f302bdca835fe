package optimistic

import (
	"context"
	"fmt"
)

// Result is the tagged outcome of a remote call.
type Result[R any] struct {
	value R
	err   error
}

func Ok[R any](v R) Result[R] { return Result[R]{value: v} }

// Fail wraps err. A nil err still yields a failed result.
func Fail[R any](err error) Result[R] {
	if err == nil {
		err = fmt.Errorf("remote call failed")
	}
	return Result[R]{err: err}
}

func (r Result[R]) OK() bool { return r.err == nil }

func (r Result[R]) Unwrap() (R, error) { return r.value, r.err }

// Call runs fn and converts its return values into a Result. A panic in fn
// becomes a failed Result.
func Call[R any](ctx context.Context, fn func(context.Context) (R, error)) (res Result[R]) {
	defer func() {
		if p := recover(); p != nil {
			res = Fail[R](fmt.Errorf("remote call panicked: %v", p))
		}
	}()
	v, err := fn(ctx)
	if err != nil {
		return Fail[R](err)
	}
	return Ok(v)
}
