package accounts

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

var ErrEmptyPool = errors.New("account pool requires at least one credential")

// Credential is a signing account of the relayer.
//
// A Credential must be locked for the whole build+sign+send of a transaction, so that two sends
// from the same account never race for a nonce.
type Credential struct {
	sendLock sync.Mutex
	address  common.Address
	key      *ecdsa.PrivateKey
}

func NewCredential(key *ecdsa.PrivateKey) *Credential {
	return &Credential{
		address: crypto.PubkeyToAddress(key.PublicKey),
		key:     key,
	}
}

// ParseCredential builds a Credential from a hex encoded private key, with or without 0x prefix.
func ParseCredential(hexKey string) (*Credential, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	return NewCredential(key), nil
}

func (c *Credential) Address() common.Address {
	return c.address
}

func (c *Credential) PrivateKey() *ecdsa.PrivateKey {
	return c.key
}

func (c *Credential) Lock() {
	c.sendLock.Lock()
}

func (c *Credential) Unlock() {
	c.sendLock.Unlock()
}

// Pool hands out the credentials of one chain in round robin order.
type Pool struct {
	mu    sync.Mutex
	creds []*Credential
}

func NewPool(creds []*Credential) (*Pool, error) {
	if len(creds) == 0 {
		return nil, ErrEmptyPool
	}

	buf := make([]*Credential, len(creds))
	copy(buf, creds)
	return &Pool{creds: buf}, nil
}

// NewPoolFromKeys parses every key and builds a Pool out of them.
func NewPoolFromKeys(hexKeys []string) (*Pool, error) {
	creds := make([]*Credential, 0, len(hexKeys))
	for i, k := range hexKeys {
		cred, err := ParseCredential(k)
		if err != nil {
			return nil, fmt.Errorf("key #%d: %w", i, err)
		}
		creds = append(creds, cred)
	}
	return NewPool(creds)
}

// Checkout returns the front credential and moves it to the back. N consecutive calls on a
// pool of N credentials return each of them exactly once.
func (p *Pool) Checkout() *Credential {
	p.mu.Lock()
	defer p.mu.Unlock()

	cred := p.creds[0]
	copy(p.creds, p.creds[1:])
	p.creds[len(p.creds)-1] = cred
	return cred
}

func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return len(p.creds)
}

// Addresses returns the addresses in the current rotation order.
func (p *Pool) Addresses() []common.Address {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]common.Address, 0, len(p.creds))
	for _, c := range p.creds {
		out = append(out, c.address)
	}
	return out
}
