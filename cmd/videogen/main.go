// Package main provides videogen, a command-line client that submits a
// prompt to the promptvideo relay and follows the job until it finishes.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/maauso/promptvideo-api/internal/apiclient"
	"github.com/maauso/promptvideo-api/internal/config"
	"github.com/maauso/promptvideo-api/internal/flow"
	"github.com/maauso/promptvideo-api/internal/generation"
	"github.com/maauso/promptvideo-api/internal/poller"
)

// Exit codes.
const (
	exitCompleted = 0
	exitFailed    = 1
	exitUsage     = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(stderr, "error: load .env: %v\n", err)
		return exitUsage
	}

	defaults, err := config.LoadClient()
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitUsage
	}

	fs := flag.NewFlagSet("videogen", flag.ContinueOnError)
	fs.SetOutput(stderr)
	serverURL := fs.String("server", defaults.ServerURL, "relay server URL")
	prompt := fs.String("prompt", "", "text description of the video (10-500 characters)")
	duration := fs.String("duration", string(generation.Duration30Sec), `video length: "30 sec" or "1 min"`)
	orientation := fs.String("orientation", string(generation.OrientationLandscape), "landscape or portrait")
	stream := fs.Bool("stream", false, "follow status over the server's event stream instead of polling")
	interval := fs.Duration("interval", defaults.PollInterval, "status check interval")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	logger := defaults.NewLogger()

	req := generation.GenerationRequest{
		Prompt:      *prompt,
		Duration:    generation.Duration(*duration),
		Orientation: generation.Orientation(*orientation),
	}

	client, err := apiclient.New(*serverURL, apiclient.WithLogger(logger))
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitUsage
	}

	var checker poller.StatusChecker = client
	if *stream {
		sc := apiclient.NewStreamChecker(client)
		defer sc.Close()
		checker = sc
	}

	f := flow.New(client, checker,
		flow.WithPollInterval(*interval),
		flow.WithLogger(logger),
		flow.WithObserver(func(s generation.PollState) { printState(stdout, s) }),
	)
	defer f.Close()

	if err := f.Submit(ctx, req); err != nil {
		var vErr *generation.ValidationError
		if errors.As(err, &vErr) {
			printValidation(stderr, vErr)
			return exitFailed
		}
		// The observer already printed the error state.
		return exitFailed
	}

	final, err := f.Wait(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitFailed
	}
	if final.Status != generation.StateCompleted {
		return exitFailed
	}
	return exitCompleted
}

func printState(w io.Writer, s generation.PollState) {
	ts := time.Now().Format(time.TimeOnly)
	switch s.Status {
	case generation.StateCompleted:
		fmt.Fprintf(w, "%s %s %s\n", ts, s.Status, s.VideoURL)
	case generation.StateFailed, generation.StateError:
		fmt.Fprintf(w, "%s %s: %s\n", ts, s.Status, s.ErrorMessage)
	default:
		fmt.Fprintf(w, "%s %s\n", ts, s.Status)
	}
}

func printValidation(w io.Writer, vErr *generation.ValidationError) {
	fields := make([]string, 0, len(vErr.Fields))
	for field := range vErr.Fields {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	fmt.Fprintln(w, "invalid request:")
	for _, field := range fields {
		fmt.Fprintf(w, "  %s: %s\n", field, vErr.Fields[field])
	}
}
