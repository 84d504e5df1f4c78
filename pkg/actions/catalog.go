package actions

import (
	"fmt"
	"sort"
)

// Catalog manages the available quick actions
type Catalog struct {
	actions map[string]Action
}

// NewCatalog creates a Catalog holding the given actions.
func NewCatalog(actions ...Action) *Catalog {
	c := &Catalog{
		actions: make(map[string]Action, len(actions)),
	}
	for _, a := range actions {
		c.Register(a)
	}
	return c
}

// Register adds or replaces an action.
func (c *Catalog) Register(a Action) {
	c.actions[a.Type] = a
}

// Get retrieves an action by type
func (c *Catalog) Get(actionType string) (Action, error) {
	a, ok := c.actions[actionType]
	if !ok {
		return Action{}, fmt.Errorf("action not found: %s", actionType)
	}
	return a, nil
}

// List returns all registered actions sorted by type.
func (c *Catalog) List() []Action {
	out := make([]Action, 0, len(c.actions))
	for _, a := range c.actions {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })
	return out
}
