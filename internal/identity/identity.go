// Package identity holds the account the shell is logged in as.
package identity

import (
	"errors"
	"fmt"
	"sync"
)

var (
	ErrNotReady   = errors.New("self account not set")
	ErrAlreadySet = errors.New("self account already set")
)

// Provider is written once by the network client and read by the event
// loop.
type Provider struct {
	mu      sync.RWMutex
	account int64
	ready   bool
}

func New() *Provider { return &Provider{} }

func (p *Provider) SelfAccount() (int64, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.ready {
		return 0, ErrNotReady
	}
	return p.account, nil
}

// Set records the self account. Setting the same account again is a no-op.
func (p *Provider) Set(account int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ready {
		if p.account == account {
			return nil
		}
		return fmt.Errorf("%w: have %d, got %d", ErrAlreadySet, p.account, account)
	}
	p.account, p.ready = account, true
	return nil
}

func (p *Provider) Ready() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.ready
}
