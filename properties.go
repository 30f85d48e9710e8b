package ui

import (
	"fmt"
	"sort"
)

const (
	FieldCreate = "field.create"
	FieldUpdate = "field.update"
	FieldDelete = "field.delete"
)

// FieldEvent is published on the Properties channel for every field mutation.
type FieldEvent struct {
	Field string
	Old   Value
	New   Value
}

// Properties is an observable, field-keyed record. Every mutation is
// published on its own Channel under FieldCreate, FieldUpdate or FieldDelete.
//
// Updates are published even when the new value equals the old one: it is up
// to the subscribers to decide whether a no-op write matters.
type Properties struct {
	schema  Schema
	fields  map[string]Value
	channel *Channel
}

// NewProperties builds a model from a schema. Fields with a default value are
// created right away.
func NewProperties(schema Schema) (*Properties, error) {
	if schema == nil {
		schema = NewSchema()
	}
	if err := schema.Check(); err != nil {
		return nil, err
	}
	p := &Properties{
		schema:  schema,
		fields:  make(map[string]Value),
		channel: NewChannel(),
	}
	for _, name := range schema.Fields() {
		fs := schema[name]
		if fs.Default == nil {
			continue
		}
		v, _ := ValueOf(fs.Default) // checked above
		p.fields[name] = v
	}
	return p, nil
}

// Channel returns the channel field events are published on.
func (p *Properties) Channel() *Channel {
	return p.channel
}

// Schema returns the schema the model validates against.
func (p *Properties) Schema() Schema {
	return p.schema
}

func (p *Properties) Get(field string) (Value, bool) {
	v, ok := p.fields[field]
	return v, ok
}

func (p *Properties) Has(field string) bool {
	_, ok := p.fields[field]
	return ok
}

// Set creates or updates a field. Fields absent from the schema are accepted
// without validation.
func (p *Properties) Set(field string, value Value) error {
	if field == "" {
		return fmt.Errorf("%w: empty field name", ErrInvalidArgument)
	}
	if fs, ok := p.schema[field]; ok {
		if err := fs.Validate(field, value); err != nil {
			return err
		}
	}
	old, ok := p.fields[field]
	p.fields[field] = value
	if !ok {
		p.channel.Publish(FieldCreate, FieldEvent{field, nil, value})
		return nil
	}
	p.channel.Publish(FieldUpdate, FieldEvent{field, old, value})
	return nil
}

// Delete removes a field. Required fields cannot be deleted.
func (p *Properties) Delete(field string) (bool, error) {
	old, ok := p.fields[field]
	if !ok {
		return false, nil
	}
	if fs, ok := p.schema[field]; ok && fs.Required {
		return false, fmt.Errorf("%w: field %s is required", ErrInvalidArgument, field)
	}
	delete(p.fields, field)
	p.channel.Publish(FieldDelete, FieldEvent{field, old, nil})
	return true, nil
}

// Fields returns the names of the fields currently set, in lexical order.
func (p *Properties) Fields() []string {
	names := make([]string, 0, len(p.fields))
	for k := range p.fields {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Snapshot returns a deep copy of the fields.
func (p *Properties) Snapshot() Object {
	o := NewObject()
	for k, v := range p.fields {
		o[k] = Copy(v)
	}
	return o
}
