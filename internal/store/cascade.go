package store

import "fmt"

// createChild is the single creation routine behind every Create* call.
//
// It takes the write locks of the child collection and of every dependent
// collection in the global order events < maps < routes < configurations <
// scores (callers pass deps in that order and the child collection always
// precedes its dependents), so the parent check, the sibling-name check, the
// insert and the opening of dependent buckets are one unit for any reader.
//
// A parent exists exactly when the child collection holds a bucket for it;
// that bucket is opened by the cascade that created the parent.
func createChild[T record[T]](s *Store, c *collection[T], parentID string, child T, deps ...dependent) (T, error) {
	var zero T
	if err := child.validate(); err != nil {
		return zero, err
	}

	c.lock()
	defer c.unlock()
	for _, d := range deps {
		d.lock()
	}
	defer func() {
		for i := len(deps) - 1; i >= 0; i-- {
			deps[i].unlock()
		}
	}()

	siblings, ok := c.buckets[parentID]
	if !ok {
		return zero, fmt.Errorf("%w: %q", ErrParentNotFound, parentID)
	}
	if name := child.label(); name != "" {
		for _, sib := range siblings {
			if sib.label() == name {
				return zero, fmt.Errorf("%w: %q", ErrAlreadyExists, name)
			}
		}
	}

	created := child.assign(s.newID())
	c.buckets[parentID] = append(siblings, created)
	for _, d := range deps {
		d.openLocked(created.key())
	}
	s.version.Add(1)

	return created.clone(), nil
}
