package registry

import (
	"strings"
)

// RegistryConfig lists the target contracts the relayer may call.
type RegistryConfig struct {
	Addresses []string
}

// New builds the target allowlist from cfg. Blank entries are skipped and addresses are
// stored lowercase, so checksummed and lowercase forms of the same contract are equal.
func New(cfg *RegistryConfig) *Registry {
	r := &Registry{
		addresses: make(map[string]struct{}, len(cfg.Addresses)),
	}
	for _, addr := range cfg.Addresses {
		addr = normalize(addr)
		if addr == "" {
			continue
		}
		r.addresses[addr] = struct{}{}
	}
	return r
}

// Registry is the relayer's list of target contracts. When it is not empty, the relayer only
// forwards calls to the contracts listed here.
type Registry struct {
	addresses map[string]struct{}
}

// IsEmpty reports whether no target is configured.
func (r *Registry) IsEmpty() bool {
	return len(r.addresses) == 0
}

// Contains reports whether addr is an allowed target.
func (r *Registry) Contains(addr string) bool {
	_, ex := r.addresses[normalize(addr)]
	return ex
}

// Allows returns true if calls to addr can be relayed: either the registry is empty or addr is in it.
func (r *Registry) Allows(addr string) bool {
	return r.IsEmpty() || r.Contains(addr)
}

// GetAddresses returns the allowed targets in lowercase, in no particular order.
func (r *Registry) GetAddresses() []string {
	var out []string
	for addr := range r.addresses {
		out = append(out, addr)
	}

	return out
}

func normalize(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}
