// Package config loads MeshPay node configuration, mirroring the
// teacher's pkg/config: a struct of mapstructure/json-tagged fields, read
// from YAML via viper with MESHPAY_-prefixed environment overrides.
package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/HuyPHD2024-2027/meshpay/internal/envutil"
	"github.com/HuyPHD2024-2027/meshpay/internal/merrors"
)

// Version is the semantic version of this configuration package.
const Version = "v0.1.0"

// Config holds every tunable named in spec §6.
type Config struct {
	NodeID   string `mapstructure:"node_id" json:"node_id"`
	ListenIP string `mapstructure:"listen_ip" json:"listen_ip"`
	Port     uint16 `mapstructure:"port" json:"port"`

	BroadcastIP       string        `mapstructure:"broadcast_ip" json:"broadcast_ip"`
	DiscoveryPort     int           `mapstructure:"discovery_port" json:"discovery_port"`
	DiscoveryInterval time.Duration `mapstructure:"discovery_interval" json:"discovery_interval"`
	NeighborTimeout   time.Duration `mapstructure:"neighbor_timeout" json:"neighbor_timeout"`

	DefaultRelayTTL   uint8         `mapstructure:"default_relay_ttl" json:"default_relay_ttl"`
	RelayBundleMaxAge time.Duration `mapstructure:"relay_bundle_max_age" json:"relay_bundle_max_age"`

	RetryInterval time.Duration `mapstructure:"retry_interval" json:"retry_interval"`
	QuorumRatio   float64       `mapstructure:"quorum_ratio" json:"quorum_ratio"`

	TransportTimeout time.Duration `mapstructure:"transport_timeout" json:"transport_timeout"`

	// BCBPortRangeStart/End and PaymentPortRangeStart/End inform the
	// external QoS collaborator's traffic classification (spec §6); they
	// are descriptive only and never gate core behaviour.
	BCBPortRangeStart     uint16 `mapstructure:"bcb_port_range_start" json:"bcb_port_range_start"`
	BCBPortRangeEnd       uint16 `mapstructure:"bcb_port_range_end" json:"bcb_port_range_end"`
	PaymentPortRangeStart uint16 `mapstructure:"payment_port_range_start" json:"payment_port_range_start"`
	PaymentPortRangeEnd   uint16 `mapstructure:"payment_port_range_end" json:"payment_port_range_end"`
}

// Defaults returns the spec §6 default configuration.
func Defaults() Config {
	return Config{
		NodeID:   envutil.OrDefault("MESHPAY_NODE_ID", "node-0"),
		ListenIP: envutil.OrDefault("MESHPAY_LISTEN_IP", "0.0.0.0"),
		Port:     uint16(envutil.OrDefaultInt("MESHPAY_PORT", 9000)),

		BroadcastIP:       envutil.OrDefault("MESHPAY_BROADCAST_IP", "255.255.255.255"),
		DiscoveryPort:     envutil.OrDefaultInt("MESHPAY_DISCOVERY_PORT", 9999),
		DiscoveryInterval: envutil.OrDefaultDuration("MESHPAY_DISCOVERY_INTERVAL", 5*time.Second),
		NeighborTimeout:   envutil.OrDefaultDuration("MESHPAY_NEIGHBOR_TIMEOUT", 15*time.Second),

		DefaultRelayTTL:   8,
		RelayBundleMaxAge: envutil.OrDefaultDuration("MESHPAY_RELAY_BUNDLE_MAX_AGE", 120*time.Second),

		RetryInterval: envutil.OrDefaultDuration("MESHPAY_RETRY_INTERVAL", 5*time.Second),
		QuorumRatio:   envutil.OrDefaultFloat("MESHPAY_QUORUM_RATIO", 2.0/3.0),

		TransportTimeout: envutil.OrDefaultDuration("MESHPAY_TRANSPORT_TIMEOUT", time.Second),

		BCBPortRangeStart:     8001,
		BCBPortRangeEnd:       8099,
		PaymentPortRangeStart: 9001,
		PaymentPortRangeEnd:   9099,
	}
}

// Load reads a YAML config file (if path is non-empty and exists) and
// layers MESHPAY_-prefixed environment variables on top, starting from
// Defaults(). A .env file in the working directory, if present, is loaded
// into the process environment first so local development doesn't require
// exporting MESHPAY_ vars by hand.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, merrors.Wrap(err, "load .env")
	}

	cfg := Defaults()

	v := viper.New()
	v.SetEnvPrefix("MESHPAY")
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
				return nil, merrors.Wrapf(err, "load config %s", path)
			}
		} else if err := v.Unmarshal(&cfg); err != nil {
			return nil, merrors.Wrap(err, "unmarshal config")
		}
	}

	return &cfg, nil
}

// ClassifyPort reports the traffic class a port belongs to, informing the
// external QoS collaborator's band classification (spec §6). It never
// drives core relay/authority behaviour.
func (c Config) ClassifyPort(port uint16) string {
	switch {
	case port >= c.BCBPortRangeStart && port <= c.BCBPortRangeEnd:
		return "bcb"
	case port >= c.PaymentPortRangeStart && port <= c.PaymentPortRangeEnd:
		return "payment"
	default:
		return "best_effort"
	}
}

// QuorumThreshold returns floor(committeeSize * QuorumRatio) + 1, the
// formula in spec §4.G / §8 property 4.
func (c Config) QuorumThreshold(committeeSize int) int {
	return int(float64(committeeSize)*c.QuorumRatio) + 1
}
