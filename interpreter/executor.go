package interpreter

import (
	"context"
	"fmt"

	"github.com/frobware/go-bpfd/action"
)

// ActionExecutor executes reified actions.
type ActionExecutor interface {
	Execute(ctx context.Context, a action.Action) error
	ExecuteAll(ctx context.Context, actions []action.Action) error
}

// executor interprets and executes actions.
type executor struct {
	store  Store
	kernel KernelOperations
}

// NewExecutor creates a new action executor.
func NewExecutor(store Store, kernel KernelOperations) ActionExecutor {
	return &executor{
		store:  store,
		kernel: kernel,
	}
}

// Execute runs a single action.
func (e *executor) Execute(ctx context.Context, a action.Action) error {
	switch a := a.(type) {
	case action.SaveProgram:
		return e.store.SaveProgram(ctx, a.Entry)

	case action.DeleteProgram:
		return e.store.DeleteProgram(ctx, a.ID)

	case action.SaveDispatcher:
		return e.store.SaveDispatcher(ctx, a.State)

	case action.DeleteDispatcher:
		return e.store.DeleteDispatcher(ctx, a.Iface)

	case action.DetachDispatcher:
		return e.kernel.DetachDispatcher(ctx, a.LinkPinPath)

	case action.RemovePin:
		return e.kernel.RemovePin(ctx, a.Path)

	case action.RemovePinTree:
		return e.kernel.RemovePinTree(ctx, a.Path)

	case action.Sequence:
		return e.ExecuteAll(ctx, a.Actions)

	default:
		return fmt.Errorf("unknown action type: %T", a)
	}
}

// ExecuteAll runs multiple actions, stopping on first error.
func (e *executor) ExecuteAll(ctx context.Context, actions []action.Action) error {
	for _, a := range actions {
		if err := e.Execute(ctx, a); err != nil {
			return err
		}
	}
	return nil
}
