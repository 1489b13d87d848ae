// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

//go:build linux

package offload

import (
	"github.com/cilium/ebpf"
	"golang.org/x/sys/unix"

	"grimm.is/bastion/internal/engine/state"
	"grimm.is/bastion/internal/errors"
	"grimm.is/bastion/internal/logging"
)

// Maps owns the kernel-side endpoint and blacklist maps and keeps them in
// step with the userspace tables. It satisfies ctlplane.Mirror.
type Maps struct {
	endpoints *ebpf.Map
	blacklist *ebpf.Map
	logger    *logging.Logger
}

// Open creates the kernel maps. If pinPath is non-empty the maps are pinned
// under it so a separately loaded XDP program can pick them up by path.
func Open(pinPath string, logger *logging.Logger) (*Maps, error) {
	endpoints, err := ebpf.NewMap(&ebpf.MapSpec{
		Name:       endpointMapName,
		Type:       ebpf.LPMTrie,
		KeySize:    endpointKeySize,
		ValueSize:  endpointValueSize,
		MaxEntries: endpointMaxEntries,
		Flags:      unix.BPF_F_NO_PREALLOC,
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.KindInternal, "failed to create endpoint map")
	}

	blacklist, err := ebpf.NewMap(&ebpf.MapSpec{
		Name:       blacklistMapName,
		Type:       ebpf.Hash,
		KeySize:    blacklistKeySize,
		ValueSize:  blacklistValSize,
		MaxEntries: blacklistMaxEntries,
	})
	if err != nil {
		endpoints.Close()
		return nil, errors.Wrap(err, errors.KindInternal, "failed to create blacklist map")
	}

	m := &Maps{endpoints: endpoints, blacklist: blacklist, logger: logger}

	if pinPath != "" {
		if err := endpoints.Pin(pinPath + "/" + endpointMapName); err != nil {
			m.Close()
			return nil, errors.Wrap(err, errors.KindInternal, "failed to pin endpoint map")
		}
		if err := blacklist.Pin(pinPath + "/" + blacklistMapName); err != nil {
			m.Close()
			return nil, errors.Wrap(err, errors.KindInternal, "failed to pin blacklist map")
		}
	}

	logger.Info("kernel maps ready",
		"endpoint_capacity", endpointMaxEntries,
		"blacklist_capacity", blacklistMaxEntries,
		"pinned", pinPath != "")
	return m, nil
}

// PutEndpoint writes an endpoint policy into the kernel LPM trie.
func (m *Maps) PutEndpoint(key state.EndpointKey, policy state.EndpointPolicy) error {
	k := endpointKeyBytes(key.PrefixLen, key.Addr, key.Port, key.Proto)
	v := endpointValueBytes(policy.OriginAddr, policy.OriginPort,
		policy.RateLimit, policy.BurstLimit, uint8(policy.Edition), policy.Maintenance)
	if err := m.endpoints.Update(k, v, ebpf.UpdateAny); err != nil {
		return errors.Wrap(err, errors.KindInternal, "failed to update endpoint map")
	}
	return nil
}

// DeleteEndpoint removes an endpoint from the kernel LPM trie.
func (m *Maps) DeleteEndpoint(key state.EndpointKey) error {
	k := endpointKeyBytes(key.PrefixLen, key.Addr, key.Port, key.Proto)
	if err := m.endpoints.Delete(k); err != nil {
		return errors.Wrap(err, errors.KindInternal, "failed to delete endpoint map entry")
	}
	return nil
}

// PutBlacklist writes a source block with its expiry deadline in milliseconds.
func (m *Maps) PutBlacklist(addr uint32, until uint64) error {
	if err := m.blacklist.Update(blacklistKeyBytes(addr), blacklistValueBytes(until), ebpf.UpdateAny); err != nil {
		return errors.Wrap(err, errors.KindInternal, "failed to update blacklist map")
	}
	return nil
}

// DeleteBlacklist removes a source block from the kernel map.
func (m *Maps) DeleteBlacklist(addr uint32) error {
	if err := m.blacklist.Delete(blacklistKeyBytes(addr)); err != nil {
		return errors.Wrap(err, errors.KindInternal, "failed to delete blacklist map entry")
	}
	return nil
}

// Close releases both maps. Pinned map files persist until unpinned.
func (m *Maps) Close() error {
	err := m.endpoints.Close()
	if cerr := m.blacklist.Close(); err == nil {
		err = cerr
	}
	return err
}
