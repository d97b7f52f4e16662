// Package bulk applies single-item operations across a batch and shapes
// the combined outcome into an HTTP response.
package bulk

import "context"

// Op applies one batch item. index is the item's position in the batch.
type Op[In, Out any] func(ctx context.Context, index int, item In) (Out, error)

// Failure records a batch item that could not be applied.
type Failure[In any] struct {
	Index int
	Item  In
	Err   error
}

// Result holds the outcome of every item of a batch.
type Result[In, Out any] struct {
	Succeeded []Out
	Failed    []Failure[In]
}

// Total returns the number of items the batch contained.
func (r Result[In, Out]) Total() int {
	return len(r.Succeeded) + len(r.Failed)
}

// Run applies op to every item in order. An item's failure is recorded and
// processing continues with the next item; nothing already applied is
// rolled back. Both slices of the result are non-nil.
func Run[In, Out any](ctx context.Context, items []In, op Op[In, Out]) Result[In, Out] {
	acc := Result[In, Out]{
		Succeeded: make([]Out, 0, len(items)),
		Failed:    make([]Failure[In], 0),
	}

	for i, item := range items {
		acc = step(ctx, acc, i, item, op)
	}

	return acc
}

func step[In, Out any](ctx context.Context, acc Result[In, Out], index int, item In, op Op[In, Out]) Result[In, Out] {
	out, err := op(ctx, index, item)
	if err != nil {
		acc.Failed = append(acc.Failed, Failure[In]{Index: index, Item: item, Err: err})
		return acc
	}
	acc.Succeeded = append(acc.Succeeded, out)
	return acc
}
