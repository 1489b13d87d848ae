// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

//go:build !linux

package offload

import (
	"grimm.is/bastion/internal/engine/state"
	"grimm.is/bastion/internal/errors"
	"grimm.is/bastion/internal/logging"
)

// Maps is the non-Linux stand-in; eBPF maps only exist on Linux.
type Maps struct{}

func Open(pinPath string, logger *logging.Logger) (*Maps, error) {
	return nil, errors.New(errors.KindUnavailable, "kernel offload requires Linux")
}

func (m *Maps) PutEndpoint(state.EndpointKey, state.EndpointPolicy) error {
	return errors.New(errors.KindUnavailable, "kernel offload requires Linux")
}

func (m *Maps) DeleteEndpoint(state.EndpointKey) error {
	return errors.New(errors.KindUnavailable, "kernel offload requires Linux")
}

func (m *Maps) PutBlacklist(addr uint32, until uint64) error {
	return errors.New(errors.KindUnavailable, "kernel offload requires Linux")
}

func (m *Maps) DeleteBlacklist(addr uint32) error {
	return errors.New(errors.KindUnavailable, "kernel offload requires Linux")
}

func (m *Maps) Close() error { return nil }
