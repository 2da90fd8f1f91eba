package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/cbodonnell/duelsync/pkg/config"
	"github.com/cbodonnell/duelsync/pkg/log"
	"github.com/cbodonnell/duelsync/pkg/recorder"
	"github.com/cbodonnell/duelsync/pkg/session"
	"github.com/cbodonnell/duelsync/pkg/state"
	"github.com/cbodonnell/duelsync/pkg/transport"
)

type ReplayOptions struct {
	*RootOptions
	LocalID int
}

// ReplayResult is the outcome of replaying a capture.
type ReplayResult struct {
	Messages  int        `json:"messages"`
	Published int64      `json:"published"`
	State     state.View `json:"state"`
}

func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay <file>",
		Short: "Replay a recorded capture offline and print the final state",
		Long: `Replay a capture written by "duelsync run --record" through an offline
session and print the resulting state as JSON.

Examples:
  duelsync replay match.zst --local-id 2`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.ConfigPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("local-id") {
				cfg.Session.LocalID = opts.LocalID
			}
			result, err := replay(cfg, args[0])
			if err != nil {
				return err
			}
			return writeResult(cmd.OutOrStdout(), result)
		},
	}

	cmd.Flags().IntVar(&opts.LocalID, "local-id", 1, "player slot the capture was recorded as (1 or 2)")

	return cmd
}

// replay feeds every captured message through an offline session, ticking
// after each one so timers and visibility replies see the same order as live.
func replay(cfg *config.Config, path string) (*ReplayResult, error) {
	cfg.Reconnect.Enabled = false
	cfg.Recorder.Enabled = false

	var null *transport.NullTransport
	s, err := session.New(session.NewSessionOptions{
		Config: cfg,
		Transport: func(h transport.Handlers) transport.Transport {
			null = transport.NewNullTransport(h)
			return null
		},
		Logger: log.Default(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %v", err)
	}
	if err := null.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect offline transport: %v", err)
	}

	now := time.Now()
	n, err := recorder.ReplayFile(path, func(topic string, payload []byte) {
		s.Route(topic, payload)
		now = now.Add(cfg.Session.TickInterval)
		s.Tick(now)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to replay %s: %v", path, err)
	}
	// let pending timers such as a delayed logout fire
	s.Tick(now.Add(cfg.Session.LogoutDelay))

	return &ReplayResult{
		Messages:  n,
		Published: null.Published(),
		State:     s.Store().View(),
	}, nil
}

func writeResult(w io.Writer, v interface{}) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode result: %v", err)
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}
