package generator

import (
	"strconv"
	"sync/atomic"

	"github.com/google/uuid"
)

// Generator produces a new value of type T on each call.
// Transcode jobs and scratch files use it for their names.
type Generator[T any] interface {
	Next() (T, error)
}

// UUIDV4Generator produces UUIDv4 strings.
type UUIDV4Generator struct{}

func (g *UUIDV4Generator) Next() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

var _ Generator[string] = &UUIDV4Generator{}

// SequenceGenerator produces Prefix followed by an increasing counter,
// starting at 1. It is safe for concurrent use.
type SequenceGenerator struct {
	Prefix string
	n      atomic.Uint64
}

func (g *SequenceGenerator) Next() (string, error) {
	return g.Prefix + strconv.FormatUint(g.n.Add(1), 10), nil
}

var _ Generator[string] = &SequenceGenerator{}
