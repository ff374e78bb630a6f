package frames

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var ErrFrameOutOfRange = errors.New("frame index out of range")

// EditOverlay holds edited versions of frames keyed by index. Originals are
// never mutated; Apply yields the composed view.
type EditOverlay struct {
	mu    sync.RWMutex
	size  int
	edits map[int]Frame
}

func NewEditOverlay(size int) *EditOverlay {
	return &EditOverlay{
		size:  size,
		edits: make(map[int]Frame),
	}
}

func (o *EditOverlay) checkIndex(index int) error {
	if index < 0 || index >= o.size {
		return fmt.Errorf("%w: %d not in [0, %d)", ErrFrameOutOfRange, index, o.size)
	}
	return nil
}

func (o *EditOverlay) Set(index int, edited Frame) error {
	if err := o.checkIndex(index); err != nil {
		return err
	}
	edited.ID = index

	o.mu.Lock()
	defer o.mu.Unlock()
	o.edits[index] = edited
	return nil
}

func (o *EditOverlay) Get(index int) (Frame, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	f, ok := o.edits[index]
	return f, ok
}

// Revert drops the edit at index, restoring the original.
func (o *EditOverlay) Revert(index int) error {
	if err := o.checkIndex(index); err != nil {
		return err
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.edits, index)
	return nil
}

func (o *EditOverlay) Len() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.edits)
}

// Indices returns the edited frame indices in ascending order.
func (o *EditOverlay) Indices() []int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	indices := make([]int, 0, len(o.edits))
	for i := range o.edits {
		indices = append(indices, i)
	}
	sort.Ints(indices)
	return indices
}

// Apply returns a copy of originals with every edited index replaced.
func (o *EditOverlay) Apply(originals []Frame) []Frame {
	out := make([]Frame, len(originals))
	copy(out, originals)

	o.mu.RLock()
	defer o.mu.RUnlock()
	for i, f := range o.edits {
		if i < len(out) {
			out[i] = f
		}
	}
	return out
}
