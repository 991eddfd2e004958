package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrParentNotFound = errors.New("parent not found")
	ErrAlreadyExists  = errors.New("already exists")
	ErrInvalid        = errors.New("invalid payload")
)

// record is the shape shared by every entity the cascade can create.
// Methods use value receivers so that T itself satisfies record[T].
type record[T any] interface {
	key() string
	label() string
	validate() error
	// assign returns a copy carrying the minted id with absent optional
	// fields defaulted to empty values.
	assign(id string) T
	clone() T
}

// Event is a top-level competition.
type Event struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	StartsAt    *time.Time `json:"starts_at,omitempty"`
	EndsAt      *time.Time `json:"ends_at,omitempty"`
}

func (e Event) key() string   { return e.ID }
func (e Event) label() string { return e.Name }

func (e Event) validate() error {
	if strings.TrimSpace(e.Name) == "" {
		return fmt.Errorf("%w: event name is required", ErrInvalid)
	}
	if e.StartsAt != nil && e.EndsAt != nil && e.EndsAt.Before(*e.StartsAt) {
		return fmt.Errorf("%w: event ends before it starts", ErrInvalid)
	}
	return nil
}

func (e Event) assign(id string) Event {
	e = e.clone()
	e.ID = id
	return e
}

func (e Event) clone() Event {
	if e.StartsAt != nil {
		t := *e.StartsAt
		e.StartsAt = &t
	}
	if e.EndsAt != nil {
		t := *e.EndsAt
		e.EndsAt = &t
	}
	return e
}

// Map is a course owned by one event.
type Map struct {
	ID    string            `json:"id"`
	Name  string            `json:"map_name"`
	Perks map[string]string `json:"perks"`
}

func (m Map) key() string   { return m.ID }
func (m Map) label() string { return m.Name }

func (m Map) validate() error {
	if strings.TrimSpace(m.Name) == "" {
		return fmt.Errorf("%w: map name is required", ErrInvalid)
	}
	return nil
}

func (m Map) assign(id string) Map {
	m = m.clone()
	m.ID = id
	if m.Perks == nil {
		m.Perks = map[string]string{}
	}
	return m
}

func (m Map) clone() Map {
	m.Perks = clonePerks(m.Perks)
	return m
}

// Route is a named, scored way through a map. Everything besides the
// fields below (start/finish lines, checkpoints, leaderboard placement...)
// is kept verbatim in Layout.
type Route struct {
	ID       string
	Name     string
	Perks    map[string]string
	Entities []json.RawMessage
	Layout   Layout
}

func (r Route) key() string   { return r.ID }
func (r Route) label() string { return r.Name }

func (r Route) validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("%w: route name is required", ErrInvalid)
	}
	return nil
}

func (r Route) assign(id string) Route {
	r = r.clone()
	r.ID = id
	if r.Perks == nil {
		r.Perks = map[string]string{}
	}
	if r.Entities == nil {
		r.Entities = []json.RawMessage{}
	}
	return r
}

func (r Route) clone() Route {
	r.Perks = clonePerks(r.Perks)
	r.Layout = r.Layout.clone()
	if r.Entities != nil {
		ents := make([]json.RawMessage, len(r.Entities))
		for i, e := range r.Entities {
			ents[i] = cloneRaw(e)
		}
		r.Entities = ents
	}
	return r
}

func (r Route) MarshalJSON() ([]byte, error) {
	doc := r.Layout.clone()
	if doc == nil {
		doc = Layout{}
	}
	for k, v := range map[string]any{"id": r.ID, "name": r.Name, "perks": r.Perks, "entities": r.Entities} {
		if err := doc.put(k, v); err != nil {
			return nil, err
		}
	}
	return json.Marshal(map[string]json.RawMessage(doc))
}

func (r *Route) UnmarshalJSON(data []byte) error {
	var doc Layout
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	if err := doc.take("id", &r.ID); err != nil {
		return err
	}
	if err := doc.take("name", &r.Name); err != nil {
		return err
	}
	if err := doc.take("perks", &r.Perks); err != nil {
		return err
	}
	if err := doc.take("entities", &r.Entities); err != nil {
		return err
	}
	r.Layout = doc.orNil()
	return nil
}

// Configuration is a scored variant of a map. Configurations predate route
// names, so Name is optional and only unique when set.
type Configuration struct {
	ID     string
	Name   string
	Perks  map[string]string
	Layout Layout
}

func (c Configuration) key() string     { return c.ID }
func (c Configuration) label() string   { return c.Name }
func (c Configuration) validate() error { return nil }

func (c Configuration) assign(id string) Configuration {
	c = c.clone()
	c.ID = id
	if c.Perks == nil {
		c.Perks = map[string]string{}
	}
	return c
}

func (c Configuration) clone() Configuration {
	c.Perks = clonePerks(c.Perks)
	c.Layout = c.Layout.clone()
	return c
}

func (c Configuration) MarshalJSON() ([]byte, error) {
	doc := c.Layout.clone()
	if doc == nil {
		doc = Layout{}
	}
	if err := doc.put("id", c.ID); err != nil {
		return nil, err
	}
	if c.Name != "" {
		if err := doc.put("name", c.Name); err != nil {
			return nil, err
		}
	}
	if err := doc.put("perks", c.Perks); err != nil {
		return nil, err
	}
	return json.Marshal(map[string]json.RawMessage(doc))
}

func (c *Configuration) UnmarshalJSON(data []byte) error {
	var doc Layout
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	if err := doc.take("id", &c.ID); err != nil {
		return err
	}
	if err := doc.take("name", &c.Name); err != nil {
		return err
	}
	if err := doc.take("perks", &c.Perks); err != nil {
		return err
	}
	c.Layout = doc.orNil()
	return nil
}

// Layout holds JSON members the store does not interpret.
type Layout map[string]json.RawMessage

func (l Layout) clone() Layout {
	if l == nil {
		return nil
	}
	out := make(Layout, len(l))
	for k, v := range l {
		out[k] = cloneRaw(v)
	}
	return out
}

func (l Layout) orNil() Layout {
	if len(l) == 0 {
		return nil
	}
	return l
}

func (l Layout) put(k string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %q: %w", k, err)
	}
	l[k] = b
	return nil
}

func (l Layout) take(k string, dst any) error {
	raw, ok := l[k]
	if !ok {
		return nil
	}
	delete(l, k)
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode %q: %w", k, err)
	}
	return nil
}

func clonePerks(p map[string]string) map[string]string {
	if p == nil {
		return nil
	}
	out := make(map[string]string, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

func cloneRaw(b json.RawMessage) json.RawMessage {
	if b == nil {
		return nil
	}
	return append(json.RawMessage(nil), b...)
}
