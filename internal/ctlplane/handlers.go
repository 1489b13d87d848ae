// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package ctlplane

import (
	"encoding/json"
	"net/http"
	"net/netip"
	"time"

	"github.com/gorilla/mux"

	"grimm.is/bastion/internal/engine/state"
	"grimm.is/bastion/internal/errors"
)

// EndpointRequest is the JSON body for endpoint add/remove.
type EndpointRequest struct {
	Address     string `json:"address"` // IPv4 address or CIDR prefix
	Port        uint16 `json:"port"`
	Protocol    string `json:"protocol"` // "tcp" or "udp"
	Edition     string `json:"edition"`  // "java" or "bedrock"
	OriginAddr  string `json:"origin_address,omitempty"`
	OriginPort  uint16 `json:"origin_port,omitempty"`
	RateLimit   uint32 `json:"rate_limit,omitempty"`
	BurstLimit  uint32 `json:"burst_limit,omitempty"`
	Maintenance bool   `json:"maintenance,omitempty"`
}

// EndpointResponse is one registry entry in list output.
type EndpointResponse struct {
	Address     string `json:"address"`
	Port        uint16 `json:"port"`
	Protocol    string `json:"protocol"`
	Edition     string `json:"edition"`
	OriginAddr  string `json:"origin_address,omitempty"`
	OriginPort  uint16 `json:"origin_port,omitempty"`
	RateLimit   uint32 `json:"rate_limit"`
	BurstLimit  uint32 `json:"burst_limit"`
	Maintenance bool   `json:"maintenance"`
}

// BlacklistRequest is the JSON body for blacklist add.
type BlacklistRequest struct {
	Address  string `json:"address"`
	Duration string `json:"duration"` // Go duration, e.g. "10m"
}

// BlacklistResponse is one blacklist entry in list output.
type BlacklistResponse struct {
	Address      string `json:"address"`
	RemainingMS  uint64 `json:"remaining_ms"`
	BlockedUntil uint64 `json:"blocked_until_ms"`
}

func (r *EndpointRequest) key() (state.EndpointKey, error) {
	addr, plen, err := parsePrefix(r.Address)
	if err != nil {
		return state.EndpointKey{}, err
	}
	key := state.EndpointKey{PrefixLen: plen, Addr: addr, Port: r.Port}
	switch r.Protocol {
	case "tcp":
		key.Proto = 6
	case "udp":
		key.Proto = 17
	default:
		return state.EndpointKey{}, errors.Errorf(errors.KindValidation, "protocol must be tcp or udp, got %q", r.Protocol)
	}
	if r.Port == 0 {
		return state.EndpointKey{}, errors.New(errors.KindValidation, "port is required")
	}
	return key, nil
}

func (r *EndpointRequest) policy() (state.EndpointPolicy, error) {
	policy := state.EndpointPolicy{
		OriginPort:  r.OriginPort,
		RateLimit:   r.RateLimit,
		BurstLimit:  r.BurstLimit,
		Maintenance: r.Maintenance,
	}
	switch r.Edition {
	case "java":
		policy.Edition = state.EditionJava
	case "bedrock":
		policy.Edition = state.EditionBedrock
	default:
		return state.EndpointPolicy{}, errors.Errorf(errors.KindValidation, "edition must be java or bedrock, got %q", r.Edition)
	}
	if r.OriginAddr != "" {
		origin, _, err := parsePrefix(r.OriginAddr)
		if err != nil {
			return state.EndpointPolicy{}, err
		}
		policy.OriginAddr = origin
	}
	return policy, nil
}

func (s *Server) handleListEndpoints(w http.ResponseWriter, r *http.Request) {
	entries := s.engine.Registry().Entries()
	out := make([]EndpointResponse, 0, len(entries))
	for _, e := range entries {
		resp := EndpointResponse{
			Address:     formatPrefix(e.Key.Addr, e.Key.PrefixLen),
			Port:        e.Key.Port,
			Edition:     e.Policy.Edition.String(),
			OriginPort:  e.Policy.OriginPort,
			RateLimit:   e.Policy.RateLimit,
			BurstLimit:  e.Policy.BurstLimit,
			Maintenance: e.Policy.Maintenance,
		}
		if e.Key.Proto == 17 {
			resp.Protocol = "udp"
		} else {
			resp.Protocol = "tcp"
		}
		if e.Policy.OriginAddr != 0 {
			resp.OriginAddr = formatAddr(e.Policy.OriginAddr)
		}
		out = append(out, resp)
	}
	respondWithJSON(w, http.StatusOK, out)
}

func (s *Server) handleAddEndpoint(w http.ResponseWriter, r *http.Request) {
	var req EndpointRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, errors.Wrap(err, errors.KindValidation, "invalid request body"))
		return
	}

	key, err := req.key()
	if err != nil {
		respondWithError(w, err)
		return
	}
	policy, err := req.policy()
	if err != nil {
		respondWithError(w, err)
		return
	}

	if err := s.engine.Registry().Add(key, policy); err != nil {
		respondWithError(w, err)
		return
	}
	if s.mirror != nil {
		if err := s.mirror.PutEndpoint(key, policy); err != nil {
			s.logger.Error("failed to mirror endpoint to kernel map", "address", req.Address, "error", err)
		}
	}

	s.logger.Info("endpoint added", "address", req.Address, "port", req.Port, "edition", req.Edition)
	respondWithJSON(w, http.StatusCreated, map[string]string{"status": "created"})
}

func (s *Server) handleRemoveEndpoint(w http.ResponseWriter, r *http.Request) {
	var req EndpointRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, errors.Wrap(err, errors.KindValidation, "invalid request body"))
		return
	}

	key, err := req.key()
	if err != nil {
		respondWithError(w, err)
		return
	}

	if !s.engine.Registry().Remove(key) {
		respondWithError(w, errors.Errorf(errors.KindNotFound, "no endpoint for %s", req.Address))
		return
	}
	if s.mirror != nil {
		if err := s.mirror.DeleteEndpoint(key); err != nil {
			s.logger.Error("failed to remove endpoint from kernel map", "address", req.Address, "error", err)
		}
	}

	s.logger.Info("endpoint removed", "address", req.Address, "port", req.Port)
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleListBlacklist(w http.ResponseWriter, r *http.Request) {
	now := s.engine.Now()
	entries := s.engine.Blacklist().Entries()
	out := make([]BlacklistResponse, 0, len(entries))
	for _, e := range entries {
		resp := BlacklistResponse{Address: formatAddr(e.Addr), BlockedUntil: e.Until}
		if e.Until > now {
			resp.RemainingMS = e.Until - now
		}
		out = append(out, resp)
	}
	respondWithJSON(w, http.StatusOK, out)
}

func (s *Server) handleAddBlacklist(w http.ResponseWriter, r *http.Request) {
	var req BlacklistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, errors.Wrap(err, errors.KindValidation, "invalid request body"))
		return
	}

	addr, plen, err := parsePrefix(req.Address)
	if err != nil {
		respondWithError(w, err)
		return
	}
	if plen != 32 {
		respondWithError(w, errors.New(errors.KindValidation, "blacklist entries are single addresses, not prefixes"))
		return
	}

	dur, err := time.ParseDuration(req.Duration)
	if err != nil || dur <= 0 {
		respondWithError(w, errors.Errorf(errors.KindValidation, "invalid duration %q", req.Duration))
		return
	}

	until := s.engine.Now() + uint64(dur/time.Millisecond)
	if err := s.engine.Blacklist().Add(addr, until); err != nil {
		respondWithError(w, err)
		return
	}
	if s.mirror != nil {
		if err := s.mirror.PutBlacklist(addr, until); err != nil {
			s.logger.Error("failed to mirror blacklist entry to kernel map", "address", req.Address, "error", err)
		}
	}

	s.logger.Info("source blacklisted", "address", req.Address, "duration", req.Duration)
	respondWithJSON(w, http.StatusCreated, map[string]any{"status": "created", "blocked_until_ms": until})
}

func (s *Server) handleRemoveBlacklist(w http.ResponseWriter, r *http.Request) {
	address := mux.Vars(r)["address"]
	addr, plen, err := parsePrefix(address)
	if err != nil || plen != 32 {
		respondWithError(w, errors.Errorf(errors.KindValidation, "invalid address %q", address))
		return
	}

	if !s.engine.Blacklist().Remove(addr) {
		respondWithError(w, errors.Errorf(errors.KindNotFound, "%s is not blacklisted", address))
		return
	}
	if s.mirror != nil {
		if err := s.mirror.DeleteBlacklist(addr); err != nil {
			s.logger.Error("failed to remove blacklist entry from kernel map", "address", address, "error", err)
		}
	}

	s.logger.Info("source unblacklisted", "address", address)
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// respondWithJSON sends a JSON response.
func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	response, err := json.Marshal(payload)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

// respondWithError maps error kinds to HTTP status codes.
func respondWithError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	switch errors.GetKind(err) {
	case errors.KindValidation:
		code = http.StatusBadRequest
	case errors.KindNotFound:
		code = http.StatusNotFound
	case errors.KindConflict:
		code = http.StatusConflict
	case errors.KindCapacity:
		code = http.StatusInsufficientStorage
	case errors.KindUnavailable:
		code = http.StatusServiceUnavailable
	}
	respondWithJSON(w, code, map[string]string{"error": err.Error()})
}

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

func formatAddr(addr uint32) string {
	return netip.AddrFrom4([4]byte{byte(addr >> 24), byte(addr >> 16), byte(addr >> 8), byte(addr)}).String()
}

func formatPrefix(addr uint32, plen uint8) string {
	if plen == 32 {
		return formatAddr(addr)
	}
	return netip.PrefixFrom(netip.AddrFrom4([4]byte{byte(addr >> 24), byte(addr >> 16), byte(addr >> 8), byte(addr)}), int(plen)).String()
}
