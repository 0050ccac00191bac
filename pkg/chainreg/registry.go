package chainreg

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"sei-bridge/pkg/types"
)

const (
	DefaultRegistryFileName = ".sei-bridge-chains.json"
)

// Registry persists the custom Cosmos chain definitions the destination
// wallet knows about.
type Registry struct {
	filePath string
	mu       sync.RWMutex
	chains   map[string]types.ChainDefinition
}

// registryFile represents the JSON structure for storage
type registryFile struct {
	Chains map[string]types.ChainDefinition `json:"chains"`
}

// NewRegistry opens the registry at filePath, defaulting to the home directory.
func NewRegistry(filePath string) (*Registry, error) {
	if filePath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		filePath = filepath.Join(home, DefaultRegistryFileName)
	}

	registry := &Registry{
		filePath: filePath,
		chains:   make(map[string]types.ChainDefinition),
	}

	if err := registry.load(); err != nil {
		// A missing file is created on first save
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load chain registry: %w", err)
		}
	}

	return registry, nil
}

func (r *Registry) load() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := os.ReadFile(r.filePath)
	if err != nil {
		return err
	}

	var file registryFile
	if err := json.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to unmarshal chains: %w", err)
	}

	r.chains = file.Chains
	if r.chains == nil {
		r.chains = make(map[string]types.ChainDefinition)
	}

	return nil
}

// save writes the registry. Callers hold r.mu.
func (r *Registry) save() error {
	data, err := json.MarshalIndent(registryFile{Chains: r.chains}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal chains: %w", err)
	}

	dir := filepath.Dir(r.filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	// Write to temporary file first, then rename for atomic write
	tempFile := r.filePath + ".tmp"
	if err := os.WriteFile(tempFile, data, 0600); err != nil {
		return fmt.Errorf("failed to write chains: %w", err)
	}

	if err := os.Rename(tempFile, r.filePath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}

// Register stores def, replacing an existing definition with the same chain id.
func (r *Registry) Register(def types.ChainDefinition) error {
	if err := Validate(def); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	previous, existed := r.chains[def.ChainID]
	r.chains[def.ChainID] = def

	if err := r.save(); err != nil {
		if existed {
			r.chains[def.ChainID] = previous
		} else {
			delete(r.chains, def.ChainID)
		}
		return err
	}

	return nil
}

// Get retrieves a chain definition by chain id
func (r *Registry) Get(chainID string) (types.ChainDefinition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	def, ok := r.chains[chainID]
	return def, ok
}

// Has reports whether chainID is registered
func (r *Registry) Has(chainID string) bool {
	_, ok := r.Get(chainID)
	return ok
}

// Remove deletes a chain definition
func (r *Registry) Remove(chainID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	def, exists := r.chains[chainID]
	if !exists {
		return fmt.Errorf("chain '%s' not registered", chainID)
	}

	delete(r.chains, chainID)
	if err := r.save(); err != nil {
		r.chains[chainID] = def
		return err
	}

	return nil
}

// List returns all registered chains ordered by chain id
func (r *Registry) List() []types.ChainDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	chains := make([]types.ChainDefinition, 0, len(r.chains))
	for _, def := range r.chains {
		chains = append(chains, def)
	}
	sort.Slice(chains, func(i, j int) bool {
		return chains[i].ChainID < chains[j].ChainID
	})

	return chains
}

// FilePath returns the registry file path
func (r *Registry) FilePath() string {
	return r.filePath
}

// Validate checks the fields a wallet needs before it can enable a chain.
func Validate(def types.ChainDefinition) error {
	switch {
	case def.ChainID == "":
		return fmt.Errorf("chain id is required")
	case def.ChainName == "":
		return fmt.Errorf("chain name is required")
	case def.RPC == "" || def.REST == "":
		return fmt.Errorf("chain %s needs both rpc and rest endpoints", def.ChainID)
	case def.Bech32Config.Bech32PrefixAccAddr == "":
		return fmt.Errorf("chain %s has no bech32 account prefix", def.ChainID)
	case len(def.Currencies) == 0:
		return fmt.Errorf("chain %s has no currencies", def.ChainID)
	case len(def.FeeCurrencies) == 0:
		return fmt.Errorf("chain %s has no fee currency", def.ChainID)
	case def.StakeCurrency.CoinMinimalDenom == "":
		return fmt.Errorf("chain %s has no stake currency", def.ChainID)
	}
	return nil
}
