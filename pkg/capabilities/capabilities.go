package capabilities

// AmountCapability is a numeric capacity the worker advertises, e.g.
// amount.worker.vcpu or amount.worker.memory.
type AmountCapability struct {
	Name  string
	Value float64
}

// AttributeCapability is a classification tag set the worker advertises,
// e.g. attr.worker.os.family = [linux].
type AttributeCapability struct {
	Name   string
	Values []string
}

// Capabilities describes what the worker offers the scheduler: numeric
// amounts and string-set attributes. Instances are immutable once
// constructed; Merge returns a new instance.
//
// Insertion order of both mappings is preserved through Merge and
// ForRemote, so the payload sent to the control plane is stable across
// heartbeats.
type Capabilities struct {
	amountOrder []string
	amounts     map[string]float64

	attrOrder  []string
	attributes map[string][]string
}

// New builds Capabilities from ordered amount and attribute lists. A name
// repeated within a list keeps its first position and last value.
func New(amounts []AmountCapability, attributes []AttributeCapability) *Capabilities {
	c := &Capabilities{
		amounts:    make(map[string]float64, len(amounts)),
		attributes: make(map[string][]string, len(attributes)),
	}
	for _, a := range amounts {
		if _, seen := c.amounts[a.Name]; !seen {
			c.amountOrder = append(c.amountOrder, a.Name)
		}
		c.amounts[a.Name] = a.Value
	}
	for _, a := range attributes {
		if _, seen := c.attributes[a.Name]; !seen {
			c.attrOrder = append(c.attrOrder, a.Name)
		}
		c.attributes[a.Name] = append([]string(nil), a.Values...)
	}
	return c
}

// Amount returns the named amount, if present.
func (c *Capabilities) Amount(name string) (float64, bool) {
	v, ok := c.amounts[name]
	return v, ok
}

// Attribute returns a copy of the named attribute values, if present.
func (c *Capabilities) Attribute(name string) ([]string, bool) {
	v, ok := c.attributes[name]
	if !ok {
		return nil, false
	}
	return append([]string(nil), v...), true
}

// Merge combines the receiver with other, right-biased: for every key
// present in either side, other's value wins when present, otherwise the
// receiver's value is kept. Replacement is whole-value per key; attribute
// value sets are not unioned element-wise. Receiver keys keep their
// insertion order, keys unique to other are appended in other's order.
func (c *Capabilities) Merge(other *Capabilities) *Capabilities {
	merged := &Capabilities{
		amountOrder: append([]string(nil), c.amountOrder...),
		amounts:     make(map[string]float64, len(c.amounts)+len(other.amounts)),
		attrOrder:   append([]string(nil), c.attrOrder...),
		attributes:  make(map[string][]string, len(c.attributes)+len(other.attributes)),
	}

	for name, v := range c.amounts {
		merged.amounts[name] = v
	}
	for _, name := range other.amountOrder {
		if _, seen := merged.amounts[name]; !seen {
			merged.amountOrder = append(merged.amountOrder, name)
		}
		merged.amounts[name] = other.amounts[name]
	}

	for name, v := range c.attributes {
		merged.attributes[name] = append([]string(nil), v...)
	}
	for _, name := range other.attrOrder {
		if _, seen := merged.attributes[name]; !seen {
			merged.attrOrder = append(merged.attrOrder, name)
		}
		merged.attributes[name] = append([]string(nil), other.attributes[name]...)
	}

	return merged
}

// ForRemote serializes the capabilities into the ordered list shapes the
// control plane's worker-state payload expects.
func (c *Capabilities) ForRemote() ([]AmountCapability, []AttributeCapability) {
	amounts := make([]AmountCapability, 0, len(c.amountOrder))
	for _, name := range c.amountOrder {
		amounts = append(amounts, AmountCapability{Name: name, Value: c.amounts[name]})
	}
	attrs := make([]AttributeCapability, 0, len(c.attrOrder))
	for _, name := range c.attrOrder {
		attrs = append(attrs, AttributeCapability{
			Name:   name,
			Values: append([]string(nil), c.attributes[name]...),
		})
	}
	return amounts, attrs
}
