package tiktok

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// RedirectError reports a short link whose redirect target is missing or
// does not itself classify as a video link.
type RedirectError struct {
	URL    string
	Reason string
}

func (e *RedirectError) Error() string {
	return fmt.Sprintf("resolve %s: %s", e.URL, e.Reason)
}

// NotFoundError reports that the upstream considers the video absent or
// removed (non-zero status code or missing detail payload).
type NotFoundError struct {
	VideoID int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("video %d not found upstream", e.VideoID)
}

// TimeoutError wraps an upstream call that exceeded its deadline. The
// request is safe to retry on the next user trigger but is terminal for
// the current one.
type TimeoutError struct {
	Op  string
	Err error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out: %v", e.Op, e.Err)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// wrapTimeout converts deadline expiry into a TimeoutError, leaving other
// errors untouched.
func wrapTimeout(op string, err error) error {
	if err == nil {
		return nil
	}
	var nerr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &nerr) && nerr.Timeout()) {
		return &TimeoutError{Op: op, Err: err}
	}
	return err
}
