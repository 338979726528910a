// Copyright 2025 Tradeledger Authors
package model

import (
	"fmt"
	"sync"

	"github.com/tradeledger/core/pkg/canon"
)

// CommandData is the payload of a Command. Concrete command types (Issue,
// Move, Timestamp, Fix, ...) are tagged sum type variants: each carries a
// stable Tag() used on the wire so a decoder can dispatch to the right
// concrete type.
type CommandData interface {
	Tag() string
	Encode(w *canon.Writer)
}

// ContractStateData is the payload carried by a State. Like CommandData it
// is a tagged sum type; the contract hash the State also carries is what
// maps the payload to verification logic, not the tag itself.
type ContractStateData interface {
	Tag() string
	Encode(w *canon.Writer)
}

type commandDecoder func(*canon.Reader) (CommandData, error)
type stateDecoder func(*canon.Reader) (ContractStateData, error)

var registry = struct {
	mu       sync.RWMutex
	commands map[string]commandDecoder
	states   map[string]stateDecoder
}{
	commands: make(map[string]commandDecoder),
	states:   make(map[string]stateDecoder),
}

// RegisterCommand associates a command tag with its decoder. Call from an
// init() in the package defining the concrete CommandData type. Registering
// the same tag twice is a programmer error and panics.
func RegisterCommand(tag string, decode func(*canon.Reader) (CommandData, error)) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	if _, exists := registry.commands[tag]; exists {
		panic(fmt.Sprintf("model: command tag %q already registered", tag))
	}
	registry.commands[tag] = decode
}

// RegisterState associates a contract state tag with its decoder.
func RegisterState(tag string, decode func(*canon.Reader) (ContractStateData, error)) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	if _, exists := registry.states[tag]; exists {
		panic(fmt.Sprintf("model: state tag %q already registered", tag))
	}
	registry.states[tag] = decode
}

func decodeCommand(tag string, r *canon.Reader) (CommandData, error) {
	registry.mu.RLock()
	decode, ok := registry.commands[tag]
	registry.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("model: unknown command tag %q", tag)
	}
	return decode(r)
}

func decodeState(tag string, r *canon.Reader) (ContractStateData, error) {
	registry.mu.RLock()
	decode, ok := registry.states[tag]
	registry.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("model: unknown contract state tag %q", tag)
	}
	return decode(r)
}
