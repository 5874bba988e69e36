package graph

// Iterator should be embedded / implemented by types that require
// iteration functionality.
type Iterator interface {
	// Next loads the next item, returns false when no more items
	// are available or when an error occurs.
	Next() bool

	// Error returns the last error encountered by the iterator.
	Error() error

	// Close releases any resources allocated to the iterator. Close may be
	// called more than once.
	Close() error
}

// ElementIterator is implemented by types that iterate graph elements.
type ElementIterator interface {
	Iterator

	// Element returns the currently fetched element.
	Element() Element
}

// ElementIDIterator is implemented by types that iterate element ids.
type ElementIDIterator interface {
	Iterator

	// ElementID returns the currently fetched element id.
	ElementID() ElementID
}

// Static and compile-time check to ensure sliceIterator implements
// ElementIterator interface.
var _ ElementIterator = (*sliceIterator)(nil)

// sliceIterator iterates an in-memory slice of elements.
type sliceIterator struct {
	elements     []Element
	currentIndex int
}

// NewElementIterator returns an iterator over the provided elements.
func NewElementIterator(elements ...Element) ElementIterator {
	return &sliceIterator{elements: elements}
}

func (i *sliceIterator) Next() bool {
	if i.currentIndex >= len(i.elements) {
		return false
	}

	i.currentIndex++

	return true
}

func (i *sliceIterator) Error() error { return nil }

func (i *sliceIterator) Close() error {
	i.currentIndex = len(i.elements)

	return nil
}

func (i *sliceIterator) Element() Element { return i.elements[i.currentIndex-1] }

// idSliceIterator iterates an in-memory slice of element ids.
type idSliceIterator struct {
	ids          []ElementID
	currentIndex int
}

// NewElementIDIterator returns an iterator over the provided ids.
func NewElementIDIterator(ids ...ElementID) ElementIDIterator {
	return &idSliceIterator{ids: ids}
}

func (i *idSliceIterator) Next() bool {
	if i.currentIndex >= len(i.ids) {
		return false
	}

	i.currentIndex++

	return true
}

func (i *idSliceIterator) Error() error { return nil }

func (i *idSliceIterator) Close() error {
	i.currentIndex = len(i.ids)

	return nil
}

func (i *idSliceIterator) ElementID() ElementID { return i.ids[i.currentIndex-1] }

// elementIDAdapter exposes an element iterator as an id iterator.
type elementIDAdapter struct {
	ElementIterator
}

func (a elementIDAdapter) ElementID() ElementID { return a.Element().ID() }

// AsElementIDs returns an id iterator that yields the ID of every element
// produced by it.
func AsElementIDs(it ElementIterator) ElementIDIterator {
	return elementIDAdapter{it}
}

// CollectElements drains the iterator into a slice and closes it.
func CollectElements(it ElementIterator) ([]Element, error) {
	var out []Element
	for it.Next() {
		out = append(out, it.Element())
	}

	if err := it.Error(); err != nil {
		_ = it.Close()

		return out, err
	}

	return out, it.Close()
}

// CollectElementIDs drains the iterator into a slice and closes it.
func CollectElementIDs(it ElementIDIterator) ([]ElementID, error) {
	var out []ElementID
	for it.Next() {
		out = append(out, it.ElementID())
	}

	if err := it.Error(); err != nil {
		_ = it.Close()

		return out, err
	}

	return out, it.Close()
}
