// Command fppc-corpus drives the advice-letter corpus pipeline: crawl,
// fetch, extract, synthesize, verify, citations, stats. Exit codes follow
// spec §6: 0 clean completion, 1 fatal configuration error, 2 partial
// completion (cost ceiling hit or the run was cancelled).
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/nomindnick/fppc-corpus/cmd/fppc-corpus/commands"
	"github.com/nomindnick/fppc-corpus/internal/errkind"
)

func main() {
	os.Exit(run())
}

func run() int {
	err := commands.Execute()
	if err == nil {
		return 0
	}
	if errors.Is(err, errkind.ErrPartialCompletion) || errors.Is(err, context.Canceled) {
		return 2
	}
	fmt.Fprintf(os.Stderr, "fppc-corpus: %v\n", err)
	return 1
}
