package firm

import (
	"reflect"
)

// Container is the property collection of one object while it is being
// serialized or restored. On dump, Set records a property value. On load,
// Get returns the restored value of a property present in the data.
type Container interface {
	// Has reports whether the container holds a value for id.
	Has(id string) bool
	// Get returns the value held for id, or nil if absent.
	Get(id string) (any, error)
	// Set stores a value for id, replacing any previous value.
	Set(id string, v any) error
}

// Value returns the value held for id converted to V.
func Value[V any](c Container, id string) (V, error) {
	var zero V
	raw, err := c.Get(id)
	if err != nil {
		return zero, err
	}
	v, err := As[V](raw)
	if err != nil {
		return zero, newCorruptError(id, "cannot convert property", err)
	}
	return v, nil
}

// As converts a restored value to V. Restored values are int64, float64,
// string, bool, ID, time.Time, []any, map[string]any, map[any]any, the
// tracked containers or pointers to registered types; As performs the
// numeric, collection and pointer conversions needed to reach V.
func As[V any](raw any) (V, error) {
	var zero V
	rv, err := convert(raw, reflect.TypeFor[V]())
	if err != nil {
		return zero, err
	}
	return rv.Interface().(V), nil
}

// dumpContainer collects the property nodes of an object being dumped.
type dumpContainer struct {
	enc    *encoder
	node   *Node
	values map[string]any
}

func newDumpContainer(enc *encoder, node *Node) *dumpContainer {
	return &dumpContainer{enc: enc, node: node, values: make(map[string]any)}
}

func (c *dumpContainer) Has(id string) bool {
	_, ok := c.values[id]
	return ok
}

func (c *dumpContainer) Get(id string) (any, error) {
	return c.values[id], nil
}

func (c *dumpContainer) Set(id string, v any) error {
	n, err := c.enc.encode(reflect.ValueOf(v))
	if err != nil {
		return err
	}
	c.values[id] = v
	for i := range c.node.Fields {
		if c.node.Fields[i].Name == id {
			c.node.Fields[i].Value = n
			return nil
		}
	}
	c.node.Fields = append(c.node.Fields, Field{Name: id, Value: n})
	return nil
}

// loadContainer restores the property values of an object node on demand.
type loadContainer struct {
	dec    *decoder
	node   *Node
	values map[string]any
}

func newLoadContainer(dec *decoder, node *Node) *loadContainer {
	return &loadContainer{dec: dec, node: node, values: make(map[string]any)}
}

func (c *loadContainer) Has(id string) bool {
	if _, ok := c.values[id]; ok {
		return true
	}
	_, ok := c.node.Field(id)
	return ok
}

func (c *loadContainer) Get(id string) (any, error) {
	if v, ok := c.values[id]; ok {
		return v, nil
	}
	n, ok := c.node.Field(id)
	if !ok {
		return nil, nil
	}
	v, err := c.dec.decode(n)
	if err != nil {
		return nil, err
	}
	c.values[id] = v
	return v, nil
}

func (c *loadContainer) Set(id string, v any) error {
	c.values[id] = v
	return nil
}

// drain restores every field that was not read, so anchors defined inside
// unread fields still resolve aliases elsewhere in the document.
func (c *loadContainer) drain() error {
	for _, f := range c.node.Fields {
		if _, err := c.Get(f.Name); err != nil {
			return err
		}
	}
	return nil
}
