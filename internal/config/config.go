// Package config parses the flag sets shared by the node, oracle, and
// listener entrypoints: the relay address they dial, the channel they
// subscribe to, and each binary's own small set of extra knobs.
package config

import (
	"flag"
	"fmt"
	"time"
)

// Relay holds the flags every entrypoint needs to reach the relay bus.
type Relay struct {
	Host    string
	Port    int
	Channel string
}

// Addr formats Host/Port as a dial address.
func (r Relay) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

func registerRelayFlags(fs *flag.FlagSet, r *Relay) {
	fs.StringVar(&r.Host, "host", "localhost", "relay bus host")
	fs.IntVar(&r.Port, "port", 25000, "relay bus port")
	fs.StringVar(&r.Channel, "channel", "/topic/main", "relay bus channel")
}

// NodeConfig configures cmd/node.
type NodeConfig struct {
	Relay
	MetricsAddr  string
	ReconnectMin time.Duration
	Dev          bool
}

// ParseNodeConfig parses os.Args[1:]-equivalent args into a NodeConfig.
func ParseNodeConfig(args []string) (NodeConfig, error) {
	fs := flag.NewFlagSet("node", flag.ContinueOnError)
	var cfg NodeConfig
	registerRelayFlags(fs, &cfg.Relay)
	fs.StringVar(&cfg.MetricsAddr, "metrics-addr", ":9090", "address to serve Prometheus metrics on")
	fs.DurationVar(&cfg.ReconnectMin, "reconnect-min", time.Second, "minimum interval between relay reconnect attempts")
	fs.BoolVar(&cfg.Dev, "dev", false, "use human-readable development logging")
	if err := fs.Parse(args); err != nil {
		return NodeConfig{}, err
	}
	return cfg, nil
}

// OracleConfig configures cmd/oracle.
type OracleConfig struct {
	Relay
	MinInterval time.Duration
	MaxInterval time.Duration
	MinSend     uint64
	MaxSend     uint64
	Dev         bool
}

// ParseOracleConfig parses args into an OracleConfig.
func ParseOracleConfig(args []string) (OracleConfig, error) {
	fs := flag.NewFlagSet("oracle", flag.ContinueOnError)
	var cfg OracleConfig
	registerRelayFlags(fs, &cfg.Relay)
	fs.DurationVar(&cfg.MinInterval, "min-interval", 2*time.Second, "minimum delay between oracle sends")
	fs.DurationVar(&cfg.MaxInterval, "max-interval", 8*time.Second, "maximum delay between oracle sends")
	fs.Uint64Var(&cfg.MinSend, "min-send", 1, "minimum amount the oracle sends per transaction")
	fs.Uint64Var(&cfg.MaxSend, "max-send", 10, "maximum amount the oracle sends per transaction")
	fs.BoolVar(&cfg.Dev, "dev", false, "use human-readable development logging")
	if err := fs.Parse(args); err != nil {
		return OracleConfig{}, err
	}
	return cfg, nil
}

// ListenerConfig configures cmd/listener.
type ListenerConfig struct {
	Relay
	Dev bool
}

// ParseListenerConfig parses args into a ListenerConfig.
func ParseListenerConfig(args []string) (ListenerConfig, error) {
	fs := flag.NewFlagSet("listener", flag.ContinueOnError)
	var cfg ListenerConfig
	registerRelayFlags(fs, &cfg.Relay)
	fs.BoolVar(&cfg.Dev, "dev", false, "use human-readable development logging")
	if err := fs.Parse(args); err != nil {
		return ListenerConfig{}, err
	}
	return cfg, nil
}
