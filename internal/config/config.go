// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package config loads and validates bastion's HCL configuration.
package config

import (
	"net/netip"

	"github.com/hashicorp/hcl/v2/hclsimple"

	"grimm.is/bastion/internal/engine/state"
	"grimm.is/bastion/internal/errors"
)

// Config is the top-level configuration.
type Config struct {
	// Interface is the attachment point for the kernel datapath. The loader
	// consuming it is external to this module.
	Interface string `hcl:"interface,optional"`

	Tables    *TablesConfig    `hcl:"tables,block"`
	API       *APIConfig       `hcl:"api,block"`
	Metrics   *MetricsConfig   `hcl:"metrics,block"`
	Offload   *OffloadConfig   `hcl:"offload,block"`
	Endpoints []EndpointConfig `hcl:"endpoint,block"`
}

// TablesConfig sets the fixed table capacities.
type TablesConfig struct {
	Endpoints   int `hcl:"endpoints,optional"`
	RateSources int `hcl:"rate_sources,optional"`
	Blacklist   int `hcl:"blacklist,optional"`
	Flows       int `hcl:"flows,optional"`
	Challenges  int `hcl:"challenges,optional"`
}

// APIConfig controls the control-plane HTTP API.
type APIConfig struct {
	Enabled bool   `hcl:"enabled,optional"`
	Listen  string `hcl:"listen,optional"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `hcl:"enabled,optional"`
	Listen  string `hcl:"listen,optional"`
}

// OffloadConfig controls mirroring of tables into kernel maps.
type OffloadConfig struct {
	Enabled bool   `hcl:"enabled,optional"`
	PinPath string `hcl:"pin_path,optional"`
}

// EndpointConfig declares one protected endpoint.
type EndpointConfig struct {
	Address     string `hcl:"address,label"` // IPv4 address or CIDR prefix
	Port        uint16 `hcl:"port"`
	Protocol    string `hcl:"protocol"` // "tcp" or "udp"
	Edition     string `hcl:"edition"`  // "java" or "bedrock"
	OriginAddr  string `hcl:"origin_address,optional"`
	OriginPort  uint16 `hcl:"origin_port,optional"`
	RateLimit   uint32 `hcl:"rate_limit,optional"`
	BurstLimit  uint32 `hcl:"burst_limit,optional"`
	Maintenance bool   `hcl:"maintenance,optional"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Tables: &TablesConfig{
			Endpoints:   10_000,
			RateSources: 100_000,
			Blacklist:   50_000,
			Flows:       100_000,
			Challenges:  10_000,
		},
		API:     &APIConfig{Enabled: true, Listen: "127.0.0.1:8474"},
		Metrics: &MetricsConfig{Enabled: false, Listen: "127.0.0.1:9474"},
		Offload: &OffloadConfig{Enabled: false, PinPath: "/sys/fs/bpf/bastion"},
	}
}

// Load reads and validates the configuration at path.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := hclsimple.DecodeFile(path, nil, cfg); err != nil {
		return nil, errors.Wrapf(err, errors.KindValidation, "failed to parse %s", path)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes configuration from an in-memory buffer. The filename only
// labels diagnostics.
func Parse(filename string, src []byte) (*Config, error) {
	cfg := &Config{}
	if err := hclsimple.Decode(filename, src, nil, cfg); err != nil {
		return nil, errors.Wrapf(err, errors.KindValidation, "failed to parse %s", filename)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	def := Default()
	if c.Tables == nil {
		c.Tables = def.Tables
	} else {
		if c.Tables.Endpoints <= 0 {
			c.Tables.Endpoints = def.Tables.Endpoints
		}
		if c.Tables.RateSources <= 0 {
			c.Tables.RateSources = def.Tables.RateSources
		}
		if c.Tables.Blacklist <= 0 {
			c.Tables.Blacklist = def.Tables.Blacklist
		}
		if c.Tables.Flows <= 0 {
			c.Tables.Flows = def.Tables.Flows
		}
		if c.Tables.Challenges <= 0 {
			c.Tables.Challenges = def.Tables.Challenges
		}
	}
	if c.API == nil {
		c.API = def.API
	} else if c.API.Listen == "" {
		c.API.Listen = def.API.Listen
	}
	if c.Metrics == nil {
		c.Metrics = def.Metrics
	} else if c.Metrics.Listen == "" {
		c.Metrics.Listen = def.Metrics.Listen
	}
	if c.Offload == nil {
		c.Offload = def.Offload
	} else if c.Offload.PinPath == "" {
		c.Offload.PinPath = def.Offload.PinPath
	}
	for i := range c.Endpoints {
		ep := &c.Endpoints[i]
		if ep.RateLimit == 0 {
			ep.RateLimit = 1000
		}
		if ep.BurstLimit == 0 {
			ep.BurstLimit = 2000
		}
	}
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	for i := range c.Endpoints {
		ep := &c.Endpoints[i]
		if _, _, err := parsePrefix(ep.Address); err != nil {
			return errors.Wrapf(err, errors.KindValidation, "endpoint %q: bad address", ep.Address)
		}
		switch ep.Protocol {
		case "tcp", "udp":
		default:
			return errors.Errorf(errors.KindValidation, "endpoint %q: protocol must be tcp or udp, got %q", ep.Address, ep.Protocol)
		}
		switch ep.Edition {
		case "java", "bedrock":
		default:
			return errors.Errorf(errors.KindValidation, "endpoint %q: edition must be java or bedrock, got %q", ep.Address, ep.Edition)
		}
		if ep.Port == 0 {
			return errors.Errorf(errors.KindValidation, "endpoint %q: port is required", ep.Address)
		}
		if ep.OriginAddr != "" {
			if _, err := netip.ParseAddr(ep.OriginAddr); err != nil {
				return errors.Wrapf(err, errors.KindValidation, "endpoint %q: bad origin address", ep.Address)
			}
		}
	}
	return nil
}

// Entry converts an endpoint block into its registry key and policy.
func (e *EndpointConfig) Entry() (state.EndpointKey, state.EndpointPolicy, error) {
	addr, plen, err := parsePrefix(e.Address)
	if err != nil {
		return state.EndpointKey{}, state.EndpointPolicy{}, err
	}

	key := state.EndpointKey{PrefixLen: plen, Addr: addr, Port: e.Port}
	if e.Protocol == "udp" {
		key.Proto = 17
	} else {
		key.Proto = 6
	}

	policy := state.EndpointPolicy{
		OriginPort:  e.OriginPort,
		RateLimit:   e.RateLimit,
		BurstLimit:  e.BurstLimit,
		Maintenance: e.Maintenance,
	}
	if e.Edition == "bedrock" {
		policy.Edition = state.EditionBedrock
	}
	if e.OriginAddr != "" {
		origin, _, err := parsePrefix(e.OriginAddr)
		if err != nil {
			return state.EndpointKey{}, state.EndpointPolicy{}, err
		}
		policy.OriginAddr = origin
	}
	return key, policy, nil
}

// parsePrefix accepts "a.b.c.d" or "a.b.c.d/len" and returns the address as
// a 32-bit integer plus the prefix length (32 for a bare address).
func parsePrefix(s string) (uint32, uint8, error) {
	var (
		addr netip.Addr
		plen uint8
	)
	if p, err := netip.ParsePrefix(s); err == nil {
		addr = p.Addr()
		plen = uint8(p.Bits())
	} else {
		a, err := netip.ParseAddr(s)
		if err != nil {
			return 0, 0, errors.Wrapf(err, errors.KindValidation, "invalid address %q", s)
		}
		addr = a
		plen = 32
	}
	if !addr.Is4() {
		return 0, 0, errors.Errorf(errors.KindValidation, "address %q is not IPv4", s)
	}
	b := addr.As4()
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3]), plen, nil
}
