// Command snippetctl reads and writes snippets directly against the
// database, without going through the HTTP API.
//
//	snippetctl --owner alice put hello.py --language python < hello.py
//	snippetctl --owner alice get hello.py
//	snippetctl --owner alice history hello.py -o json
//
// Every persistent flag can also come from the environment (DB_DRIVER,
// DB_DSN, SNIPPET_OWNER, SNIPPET_OUTPUT) or from a --config yaml file.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sakif/snippet-store/internal/apperror"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := newRootCmd().ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
	}
	stop()
	os.Exit(exitCode(err))
}

// exitCode distinguishes expected outcomes from failures so scripts can
// branch on them: 2 bad input, 3 not found, 1 anything else.
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, apperror.ErrInvalidArgument):
		return 2
	case errors.Is(err, apperror.ErrNotFound):
		return 3
	default:
		return 1
	}
}
