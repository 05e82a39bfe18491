// rtwatch connects to the realtime socket, authenticates, subscribes to
// tickets and prints every event it receives as a JSON line until
// interrupted.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lorrc/service-desk-realtime/pkg/rtclient"
	"github.com/spf13/pflag"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	url      string
	userID   string
	role     string
	branchID string
	tickets  []string
	timeout  time.Duration
}

func parseFlags(args []string) (*options, error) {
	var opts options

	flagSet := pflag.NewFlagSet("rtwatch", pflag.ContinueOnError)
	flagSet.StringVar(&opts.url, "url", "ws://localhost:8080/api/v1/ws", "realtime socket URL")
	flagSet.StringVarP(&opts.userID, "user", "u", "", "user ID to authenticate as")
	flagSet.StringVarP(&opts.role, "role", "r", "USER", "role to authenticate with")
	flagSet.StringVarP(&opts.branchID, "branch", "b", "", "branch ID (optional)")
	flagSet.StringSliceVarP(&opts.tickets, "ticket", "t", nil, "ticket ID to subscribe to (repeatable)")
	flagSet.DurationVar(&opts.timeout, "timeout", 10*time.Second, "handshake timeout")

	if err := flagSet.Parse(args); err != nil {
		return nil, err
	}
	if rest := flagSet.Args(); len(rest) > 0 {
		return nil, fmt.Errorf("unexpected argument: %s", rest[0])
	}
	if opts.userID == "" && len(opts.tickets) == 0 {
		return nil, errors.New("nothing to watch: pass --user and/or --ticket")
	}
	return &opts, nil
}

func run(args []string, out io.Writer) error {
	opts, err := parseFlags(args)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return watch(ctx, opts, out)
}

func watch(ctx context.Context, opts *options, out io.Writer) error {
	cfg := rtclient.DefaultConfig(opts.url)
	cfg.HandshakeTimeout = opts.timeout

	client, err := rtclient.Dial(ctx, cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	if opts.userID != "" {
		authCtx, cancel := context.WithTimeout(ctx, opts.timeout)
		rooms, err := client.Authenticate(authCtx, rtclient.Identity{
			UserID:   opts.userID,
			Role:     opts.role,
			BranchID: opts.branchID,
		})
		cancel()
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "authenticated, rooms: %v\n", rooms)
	}

	for _, ticketID := range opts.tickets {
		if err := client.SubscribeTicket(ctx, ticketID); err != nil {
			return err
		}
	}

	enc := json.NewEncoder(out)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-client.Events():
			if !ok {
				if err := client.Err(); err != nil {
					return fmt.Errorf("connection lost: %w", err)
				}
				return nil
			}
			if err := enc.Encode(ev); err != nil {
				return err
			}
		}
	}
}
