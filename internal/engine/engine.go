// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package engine runs the per-packet admission pipeline for protected
// game-server endpoints: blacklist, endpoint policy lookup, token-bucket rate
// limiting, protocol validation, the datagram challenge gate and flow
// recording, in that order. Process is safe for any number of concurrent
// callers; each table guarantees per-key atomicity and no lock is held across
// more than one table operation. Any ambiguous condition drops.
package engine

import (
	"time"

	"grimm.is/bastion/internal/engine/challenge"
	"grimm.is/bastion/internal/engine/decode"
	"grimm.is/bastion/internal/engine/ratelimit"
	"grimm.is/bastion/internal/engine/state"
	"grimm.is/bastion/internal/engine/validate"
	"grimm.is/bastion/internal/logging"
)

// Verdict is the terminal outcome for one packet.
type Verdict uint8

const (
	// VerdictDrop discards the packet.
	VerdictDrop Verdict = iota
	// VerdictPass hands the packet to the ordinary network stack untouched.
	VerdictPass
	// VerdictForward admits the packet toward the protected origin.
	VerdictForward
)

func (v Verdict) String() string {
	switch v {
	case VerdictDrop:
		return "drop"
	case VerdictPass:
		return "pass"
	default:
		return "forward"
	}
}

// Reason explains a decision, mostly for tests and debugging; the counters
// are the observable signal.
type Reason uint8

const (
	ReasonNone Reason = iota
	ReasonMalformed
	ReasonUnmanaged
	ReasonBlacklisted
	ReasonMaintenance
	ReasonRateLimited
	ReasonRateError
	ReasonInvalidProtocol
	ReasonChallengePending
	ReasonFlowOverflow
)

// Decision is the outcome of Process for one packet.
type Decision struct {
	Verdict Verdict
	Reason  Reason
}

// Config sets the fixed table capacities. Zero fields take defaults sized
// like the kernel datapath maps.
type Config struct {
	EndpointCapacity  int
	RateCapacity      int
	BlacklistCapacity int
	FlowCapacity      int
	ChallengeCapacity int
}

// DefaultConfig returns the default capacities.
func DefaultConfig() Config {
	return Config{
		EndpointCapacity:  10_000,
		RateCapacity:      100_000,
		BlacklistCapacity: 50_000,
		FlowCapacity:      100_000,
		ChallengeCapacity: 10_000,
	}
}

// Engine owns the shared tables and applies the decision pipeline.
type Engine struct {
	registry  *state.Registry
	blacklist *state.Blacklist
	limiter   *ratelimit.Limiter
	gate      *challenge.Gate
	flows     *state.FlowTable
	counters  *state.Counters
	logger    *logging.Logger

	now func() uint64 // milliseconds; swappable in tests
}

// New creates an engine with all tables at their configured capacities.
func New(cfg Config, logger *logging.Logger) *Engine {
	def := DefaultConfig()
	if cfg.EndpointCapacity <= 0 {
		cfg.EndpointCapacity = def.EndpointCapacity
	}
	if cfg.RateCapacity <= 0 {
		cfg.RateCapacity = def.RateCapacity
	}
	if cfg.BlacklistCapacity <= 0 {
		cfg.BlacklistCapacity = def.BlacklistCapacity
	}
	if cfg.FlowCapacity <= 0 {
		cfg.FlowCapacity = def.FlowCapacity
	}
	if cfg.ChallengeCapacity <= 0 {
		cfg.ChallengeCapacity = def.ChallengeCapacity
	}

	counters := state.NewCounters()
	e := &Engine{
		registry:  state.NewRegistry(cfg.EndpointCapacity),
		blacklist: state.NewBlacklist(cfg.BlacklistCapacity),
		limiter:   ratelimit.New(cfg.RateCapacity),
		gate:      challenge.New(cfg.ChallengeCapacity, counters),
		flows:     state.NewFlowTable(cfg.FlowCapacity),
		counters:  counters,
		logger:    logger,
		now:       monotonicMillis,
	}

	logger.Info("engine initialized",
		"endpoints", cfg.EndpointCapacity,
		"rate_sources", cfg.RateCapacity,
		"blacklist", cfg.BlacklistCapacity,
		"flows", cfg.FlowCapacity,
		"challenges", cfg.ChallengeCapacity)

	return e
}

var bootTime = time.Now()

func monotonicMillis() uint64 {
	return uint64(time.Since(bootTime) / time.Millisecond)
}

// Registry exposes the protected-endpoint table for the control plane.
func (e *Engine) Registry() *state.Registry { return e.registry }

// Blacklist exposes the blacklist for the control plane.
func (e *Engine) Blacklist() *state.Blacklist { return e.blacklist }

// Counters exposes the outcome counter array.
func (e *Engine) Counters() *state.Counters { return e.counters }

// Flows exposes the flow table.
func (e *Engine) Flows() *state.FlowTable { return e.flows }

// Limiter exposes the rate-limit table.
func (e *Engine) Limiter() *ratelimit.Limiter { return e.limiter }

// Gate exposes the challenge table.
func (e *Engine) Gate() *challenge.Gate { return e.gate }

// Now returns the engine's current millisecond clock reading.
func (e *Engine) Now() uint64 { return e.now() }

// Process decides one inbound frame.
func (e *Engine) Process(frame []byte) Decision {
	e.counters.Inc(state.CounterTotal)

	pkt, res := decode.Parse(frame)
	switch res {
	case decode.Malformed:
		return e.drop(ReasonMalformed)
	case decode.PassThrough:
		return e.pass(ReasonNone)
	}

	now := e.now()

	if e.blacklist.Blocked(pkt.SrcAddr, now) {
		e.counters.Inc(state.CounterBlacklisted)
		return e.drop(ReasonBlacklisted)
	}

	policy, ok := e.registry.Lookup(pkt.DstAddr, pkt.DstPort, pkt.Protocol)
	if !ok {
		return e.pass(ReasonUnmanaged)
	}

	if policy.Maintenance {
		e.counters.Inc(state.CounterMaintenance)
		return e.drop(ReasonMaintenance)
	}

	switch e.limiter.Debit(pkt.SrcAddr, now, policy.RateLimit, policy.BurstLimit) {
	case ratelimit.Deny:
		e.counters.Inc(state.CounterRateLimited)
		return e.drop(ReasonRateLimited)
	case ratelimit.Error:
		return e.drop(ReasonRateError)
	}

	valid := false
	switch {
	case pkt.Protocol == decode.ProtoTCP && policy.Edition == state.EditionJava:
		valid = validate.Java(pkt.Payload)
	case pkt.Protocol == decode.ProtoUDP && policy.Edition == state.EditionBedrock:
		if validate.RakNet(pkt.Payload) {
			if !e.gate.Admit(pkt.SrcAddr, now) {
				e.counters.Inc(state.CounterChallengeFailed)
				return e.drop(ReasonChallengePending)
			}
			valid = true
		}
	}
	if !valid {
		e.counters.Inc(state.CounterInvalidProtocol)
		return e.drop(ReasonInvalidProtocol)
	}

	flow := state.FlowKey{
		SrcAddr:  pkt.SrcAddr,
		DstAddr:  pkt.DstAddr,
		SrcPort:  pkt.SrcPort,
		DstPort:  pkt.DstPort,
		Protocol: pkt.Protocol,
	}
	if err := e.flows.Record(flow); err != nil {
		return e.drop(ReasonFlowOverflow)
	}

	e.counters.Inc(state.CounterAllowed)
	e.counters.Inc(state.CounterForwarded)
	return Decision{Verdict: VerdictForward}
}

func (e *Engine) drop(reason Reason) Decision {
	e.counters.Inc(state.CounterDropped)
	return Decision{Verdict: VerdictDrop, Reason: reason}
}

func (e *Engine) pass(reason Reason) Decision {
	e.counters.Inc(state.CounterPassed)
	return Decision{Verdict: VerdictPass, Reason: reason}
}
