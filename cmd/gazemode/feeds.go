package main

import (
	"fmt"
	"time"

	"github.com/banshee-data/reading.mode/internal/feed"
	"github.com/banshee-data/reading.mode/internal/monitoring"
)

type feedOptions struct {
	Kind           string
	UDPAddress     string
	UDPRcvBuf      int
	SerialPort     string
	SerialOptions  feed.PortOptions
	Fixture        string
	ReplayInterval time.Duration
	ReplayLoop     bool
}

// buildFeed creates the gaze source selected by opts.Kind.
func buildFeed(opts feedOptions) (feed.Feed, error) {
	switch opts.Kind {
	case "udp":
		return feed.NewUDPFeed(feed.UDPConfig{Address: opts.UDPAddress, RcvBuf: opts.UDPRcvBuf}), nil
	case "serial":
		if opts.SerialPort == "" {
			return nil, fmt.Errorf("serial feed requires a port")
		}
		f, err := feed.NewSerialFeed(opts.SerialPort, opts.SerialOptions)
		if err != nil {
			return nil, fmt.Errorf("failed to open serial port %s: %w", opts.SerialPort, err)
		}
		return f, nil
	case "replay":
		if opts.Fixture == "" {
			return nil, fmt.Errorf("replay feed requires --fixture")
		}
		lines, err := feed.ReadLines(opts.Fixture)
		if err != nil {
			return nil, err
		}
		monitoring.Logf("replaying %d lines from %s", len(lines), opts.Fixture)
		var ropts []feed.ReplayOption
		if opts.ReplayLoop {
			ropts = append(ropts, feed.WithLoop())
		}
		return feed.NewReplayFeed(lines, opts.ReplayInterval, ropts...), nil
	case "disabled":
		return feed.NewDisabledFeed(), nil
	default:
		return nil, fmt.Errorf("unknown feed %q: expected udp, serial, replay or disabled", opts.Kind)
	}
}
