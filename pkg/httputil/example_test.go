package httputil_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/pkgferry/pkg/httputil"
)

func ExampleFetcher_Do() {
	f := httputil.NewFetcher(httputil.Policy{Delay: time.Millisecond, MaxAttempts: 5}, log.New(io.Discard))

	attempts := 0
	err := f.Do(context.Background(), "query index", func(context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("temporary failure in name resolution")
		}
		return nil
	})
	fmt.Println("Error:", err)
	fmt.Println("Attempts:", attempts)
	// Output:
	// Error: <nil>
	// Attempts: 3
}

func ExampleFetch() {
	f := httputil.NewFetcher(httputil.Policy{Delay: time.Millisecond}, log.New(io.Discard))

	version, err := httputil.Fetch(context.Background(), f, "latest", func(context.Context) (string, error) {
		return "2.28.0", nil
	})
	fmt.Println(version, err)
	// Output:
	// 2.28.0 <nil>
}

func ExamplePermanent() {
	f := httputil.NewFetcher(httputil.Policy{Delay: time.Millisecond}, log.New(io.Discard))

	err := f.Do(context.Background(), "download", func(context.Context) error {
		return httputil.Permanent(errors.New("404 not found"))
	})
	fmt.Println(httputil.IsPermanent(err), errors.Is(err, httputil.ErrRetriesExhausted))
	// Output:
	// true false
}
