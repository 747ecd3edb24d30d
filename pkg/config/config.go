// Package config defines the full tuning surface for a netsync peer:
// tick timing, packet/fragment sizing, ping cadence, sync and
// interpolation tuning, prediction buffering, and per-channel policy.
package config

import (
	"time"

	"github.com/appnet-org/netsync/pkg/channel"
)

// Mode selects how a peer's connections behave.
type Mode uint8

const (
	// Client connects outward to a single server.
	Client Mode = iota
	// Server accepts connections from many clients.
	Server
	// HostServer runs a server that also drives one loopback client
	// in-process, over transport.LocalTransport instead of a socket.
	HostServer
)

// Direction constrains which peer role may originate traffic on a
// channel.
type Direction uint8

const (
	// ClientToServer channels only carry client-originated traffic
	// (e.g. input streams).
	ClientToServer Direction = iota
	// ServerToClient channels only carry server-originated traffic
	// (e.g. replication updates).
	ServerToClient
	// Bidirectional channels carry traffic both ways.
	Bidirectional
)

// ChannelSpec configures one of a connection's channels.
type ChannelSpec struct {
	Kind      string // application-defined name, e.g. "replication_actions"
	Direction Direction
	Mode      channel.Mode
	Reliable  channel.Config // RTTMultiplier/MaxOutstanding/FragmentSize apply when Mode.Reliable()
}

// Config is the full tuning surface for a netsync peer.
type Config struct {
	Mode Mode

	TickDuration        time.Duration
	ServerSendInterval  time.Duration

	PacketMTU      int
	FragmentSize   int

	PingInterval time.Duration
	PingTimeout  time.Duration

	SyncSnapThresholdTicks    int32
	SyncMaxRelativeSpeedDelta float64

	InterpolationDelayTicksMin   int32
	InterpolationJitterMultiplier float64

	PredictionInputDelayTicks  int32
	PredictionMaxReplayTicks   int32

	Channels []ChannelSpec

	ConnectionTimeout time.Duration
}

// Option mutates a Config being built by DefaultConfig.
type Option func(*Config)

// WithMode overrides the peer mode.
func WithMode(m Mode) Option { return func(c *Config) { c.Mode = m } }

// WithTickDuration overrides the fixed simulation step length.
func WithTickDuration(d time.Duration) Option { return func(c *Config) { c.TickDuration = d } }

// WithChannels appends channel specs to the configuration.
func WithChannels(specs ...ChannelSpec) Option {
	return func(c *Config) { c.Channels = append(c.Channels, specs...) }
}

// WithPacketMTU overrides the configured MTU.
func WithPacketMTU(mtu int) Option { return func(c *Config) { c.PacketMTU = mtu } }

// DefaultConfig returns the spec's default tuning, with no channels
// configured; callers add their own via WithChannels or by appending to
// Channels directly.
func DefaultConfig(opts ...Option) Config {
	c := Config{
		Mode:                          Client,
		TickDuration:                  50 * time.Millisecond, // 20 Hz
		ServerSendInterval:            50 * time.Millisecond,
		PacketMTU:                     1200,
		FragmentSize:                  channel.DefaultFragmentSize,
		PingInterval:                  1 * time.Second,
		PingTimeout:                   10 * time.Second,
		SyncSnapThresholdTicks:        10,
		SyncMaxRelativeSpeedDelta:     0.05,
		InterpolationDelayTicksMin:    2,
		InterpolationJitterMultiplier: 2,
		PredictionInputDelayTicks:     0,
		PredictionMaxReplayTicks:      channel.DefaultInputBufferTicks,
		ConnectionTimeout:             3 * time.Second,
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}
