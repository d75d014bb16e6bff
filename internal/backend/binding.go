package backend

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/klingon-exchange/xswap/internal/chain"
	"github.com/klingon-exchange/xswap/pkg/logging"
)

// Defaults for FeePolicy.
const (
	DefaultFeeTarget       = 2
	DefaultFallbackFeeRate = 50 // sat/vB
)

// FeePolicy decides how a binding prices transactions.
type FeePolicy struct {
	// TargetBlocks is the confirmation target handed to the estimator.
	TargetBlocks int
	// Fallback is used when estimation fails on a non-production chain.
	Fallback FeeRate
}

// DefaultFeePolicy returns a 2-block target with a 50 sat/vB fallback.
func DefaultFeePolicy() FeePolicy {
	return FeePolicy{
		TargetBlocks: DefaultFeeTarget,
		Fallback:     FeeRateFromSatPerVByte(DefaultFallbackFeeRate),
	}
}

// Binding ties a chain's parameters to the ledger serving it.
type Binding struct {
	Params *chain.Params
	Ledger Ledger

	policy     FeePolicy
	production *bool
	aliases    []string
	log        *logging.Logger

	mu    sync.Mutex
	ready bool
}

// NewBinding creates a binding for params served by ledger.
func NewBinding(params *chain.Params, ledger Ledger, policy FeePolicy) *Binding {
	if policy.TargetBlocks <= 0 {
		policy.TargetBlocks = DefaultFeeTarget
	}
	if policy.Fallback <= 0 {
		policy.Fallback = FeeRateFromSatPerVByte(DefaultFallbackFeeRate)
	}
	return &Binding{
		Params: params,
		Ledger: ledger,
		policy: policy,
		log:    logging.GetDefault().Component("chain").With("chain", params.Symbol, "network", params.Network),
	}
}

// SetProduction overrides whether the chain is treated as carrying real value.
func (b *Binding) SetProduction(production bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.production = &production
}

// AddAliases registers extra names the binding resolves by.
func (b *Binding) AddAliases(aliases ...string) {
	b.aliases = append(b.aliases, aliases...)
}

// Name returns the chain's symbol.
func (b *Binding) Name() string {
	return b.Params.Symbol
}

// Names returns all names the binding answers to.
func (b *Binding) Names() []string {
	return append(b.Params.Names(), b.aliases...)
}

// Production reports whether estimation failures must be fatal.
func (b *Binding) Production() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.production != nil {
		return *b.production
	}
	return b.Params.Production()
}

// EnsureReady checks once that the ledger can estimate fees. A production
// chain that cannot is a configuration error; test networks only log it.
func (b *Binding) EnsureReady(ctx context.Context) error {
	production := b.Production()

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ready {
		return nil
	}

	if _, err := b.Ledger.EstimateFeeRate(ctx, b.policy.TargetBlocks); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if production {
			return fmt.Errorf("%w: %s cannot estimate fees: %v", ErrConfiguration, b.Name(), err)
		}
		b.log.Warn("Fee estimation unavailable, fallback rate will be used", "fallback", b.policy.Fallback, "error", err)
	}

	b.ready = true
	return nil
}

// FeeRate returns the rate to pay for a transaction on this chain.
func (b *Binding) FeeRate(ctx context.Context) (FeeRate, error) {
	rate, err := b.Ledger.EstimateFeeRate(ctx, b.policy.TargetBlocks)
	if err == nil {
		return rate, nil
	}
	if ctx.Err() != nil {
		return 0, ctx.Err()
	}
	if b.Production() {
		return 0, fmt.Errorf("fee estimation on %s: %w", b.Name(), err)
	}
	b.log.Warn("Using fallback fee rate", "rate", b.policy.Fallback, "error", err)
	return b.policy.Fallback, nil
}

// Registry holds chain bindings by name.
type Registry struct {
	mu       sync.RWMutex
	bindings map[string]*Binding
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		bindings: make(map[string]*Binding),
	}
}

// Register adds a binding under all its names. A name already taken by a
// different binding is an error.
func (r *Registry) Register(b *Binding) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := b.Names()
	for _, name := range names {
		key := normalizeName(name)
		if key == "" {
			continue
		}
		if existing, ok := r.bindings[key]; ok && existing != b {
			return fmt.Errorf("%w: name %q used by %s and %s", ErrConfiguration, name, existing.Name(), b.Name())
		}
	}
	for _, name := range names {
		if key := normalizeName(name); key != "" {
			r.bindings[key] = b
		}
	}
	return nil
}

// Resolve finds the binding for a chain name, symbol or alias.
func (r *Registry) Resolve(name string) (*Binding, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.bindings[normalizeName(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrChainUnknown, name)
	}
	return b, nil
}

// List returns the symbols of all registered bindings.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[*Binding]bool)
	var symbols []string
	for _, b := range r.bindings {
		if !seen[b] {
			seen[b] = true
			symbols = append(symbols, b.Name())
		}
	}
	sort.Strings(symbols)
	return symbols
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
