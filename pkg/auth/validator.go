package auth

import (
	"fmt"
	"sync"
)

// Validation modes. The storefront platform issues opaque app tokens; this
// service only checks membership, it never interprets them. allow_all keeps
// the historical behavior of accepting any token and is the default.
const (
	ModeAllowAll  = "allow_all"
	ModeTokenList = "token_list"
)

type Config struct {
	Mode   string   `yaml:"mode"`
	Tokens []string `yaml:"tokens"`
}

// Validator is the injectable token check used by the hub. Safe for
// concurrent use; Replace supports hot-reloading the token list.
type Validator struct {
	mu       sync.RWMutex
	allowAll bool
	tokens   map[string]struct{}
}

func NewValidator(cfg Config) (*Validator, error) {
	v := &Validator{}
	if err := v.Replace(cfg); err != nil {
		return nil, err
	}
	return v, nil
}

// Replace swaps in a new policy atomically.
func (v *Validator) Replace(cfg Config) error {
	switch cfg.Mode {
	case "", ModeAllowAll:
		v.mu.Lock()
		v.allowAll = true
		v.tokens = nil
		v.mu.Unlock()
	case ModeTokenList:
		tokens := make(map[string]struct{}, len(cfg.Tokens))
		for _, t := range cfg.Tokens {
			tokens[t] = struct{}{}
		}
		v.mu.Lock()
		v.allowAll = false
		v.tokens = tokens
		v.mu.Unlock()
	default:
		return fmt.Errorf("unknown auth mode %q", cfg.Mode)
	}
	return nil
}

// Validate satisfies core.TokenValidator.
func (v *Validator) Validate(shop, token string) bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.allowAll {
		return true
	}
	_, ok := v.tokens[token]
	return ok
}
