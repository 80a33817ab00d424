// Package rpcs is the operation set served by `pirate server`: a list of
// names and a counter, both held in one State.
package rpcs

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"pirate-rpc/operation"
	"pirate-rpc/server"
)

type State struct {
	Count int
	Names []string
}

// ID names the operations. The values are part of the wire format.
type ID uint8

const (
	AddName ID = iota + 1
	GetNames
	GetCount
	Increment
)

func (id ID) String() string {
	switch id {
	case AddName:
		return "AddName"
	case GetNames:
		return "GetNames"
	case GetCount:
		return "GetCount"
	case Increment:
		return "Increment"
	}
	return fmt.Sprintf("ID(%d)", uint8(id))
}

var ErrEmptyName = errors.New("name must not be empty")

var (
	addName = operation.New(AddName, func(s *State, name string) (struct{}, error) {
		name = strings.TrimSpace(name)
		if name == "" {
			return struct{}{}, ErrEmptyName
		}
		s.Names = append(s.Names, name)
		return struct{}{}, nil
	})

	getNames = operation.New(GetNames, func(s *State, _ struct{}) ([]string, error) {
		return append([]string(nil), s.Names...), nil
	})

	getCount = operation.New(GetCount, func(s *State, _ struct{}) (int, error) {
		return s.Count, nil
	})

	// increment returns the new count.
	increment = operation.New(Increment, func(s *State, _ struct{}) (int, error) {
		s.Count++
		return s.Count, nil
	})
)

// Client halves, for callers.
var (
	AddNameRpc   = addName.Rpc()
	GetNamesRpc  = getNames.Rpc()
	GetCountRpc  = getCount.Rpc()
	IncrementRpc = increment.Rpc()
)

// Register adds every operation to svr.
func Register(svr *server.Server[ID, State]) {
	svr.Register(addName)
	svr.Register(getNames)
	svr.Register(getCount)
	svr.Register(increment)
}
