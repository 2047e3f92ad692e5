package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/urfave/cli/v3"
)

// FirehoseCommand creates a CLI command that tails a running server's
// firehose WebSocket endpoint and writes one JSON event per line to
// stdout.
//
// Typical usage:
//
//	searchmux firehose --server http://localhost:8787
//	searchmux firehose | jq -r '.search.query'
//
// The command auto-reconnects with exponential backoff if the server is
// not yet available or the connection drops. It never exits unless the
// context is cancelled (Ctrl+C) or --no-retry is set and a connection
// attempt fails.
func FirehoseCommand() *cli.Command {
	return &cli.Command{
		Name:  "firehose",
		Usage: "Stream realtime search events from a running server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "server",
				Usage: "Base URL of the running server",
				Value: "http://localhost:8787",
			},
			&cli.BoolFlag{
				Name:  "pretty",
				Usage: "Pretty-print JSON instead of raw single-line",
				Value: false,
			},
			&cli.BoolFlag{
				Name:  "no-retry",
				Usage: "Do not retry on failures; exit on first connection error",
				Value: false,
			},
			&cli.DurationFlag{
				Name:  "initial-backoff",
				Usage: "Initial reconnect backoff",
				Value: time.Second,
			},
			&cli.DurationFlag{
				Name:  "max-backoff",
				Usage: "Maximum reconnect backoff",
				Value: 30 * time.Second,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			wsURL, err := firehoseURL(c.String("server"))
			if err != nil {
				return err
			}
			return tailFirehose(ctx, wsURL, c.Bool("pretty"), c.Bool("no-retry"),
				c.Duration("initial-backoff"), c.Duration("max-backoff"))
		},
	}
}

// firehoseURL turns the server base URL into the ws:// endpoint address.
func firehoseURL(server string) (string, error) {
	parsed, err := url.Parse(server)
	if err != nil {
		return "", fmt.Errorf("parsing server URL: %w", err)
	}
	switch parsed.Scheme {
	case "http", "ws":
		parsed.Scheme = "ws"
	case "https", "wss":
		parsed.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q", parsed.Scheme)
	}
	parsed.Path = strings.TrimRight(parsed.Path, "/") + "/api/firehose/ws"
	return parsed.String(), nil
}

func tailFirehose(ctx context.Context, wsURL string, pretty, noRetry bool, initialBackoff, maxBackoff time.Duration) error {
	backoff := initialBackoff

	for {
		err := streamOnce(ctx, wsURL, pretty)
		if err == nil || errors.Is(err, context.Canceled) {
			return nil
		}
		if noRetry {
			return err
		}

		fmt.Fprintf(os.Stderr, "firehose: %v, retrying in %s\n", err, backoff)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return nil
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

func streamOnce(ctx context.Context, wsURL string, pretty bool) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, resp, err := dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("connecting: %w", err)
	}
	if resp != nil {
		defer func() {
			_ = resp.Body.Close()
		}()
	}
	defer func() {
		_ = conn.Close()
	}()

	// Close the socket when the context is cancelled so ReadMessage
	// unblocks.
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	encoder := json.NewEncoder(os.Stdout)
	if pretty {
		encoder.SetIndent("", "  ")
	}

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return context.Canceled
			}
			return fmt.Errorf("reading: %w", err)
		}

		if pretty {
			var event map[string]interface{}
			if err := json.Unmarshal(message, &event); err != nil {
				continue
			}
			if err := encoder.Encode(event); err != nil {
				return err
			}
		} else {
			fmt.Println(strings.TrimSpace(string(message)))
		}
	}
}
