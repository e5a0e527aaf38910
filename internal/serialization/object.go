/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package serialization

import (
	"encoding/json"
	"fmt"
)

const (
	TypePrototype = "prototype"
	TypeObject    = "object"

	UnitProperties = "properties"
	UnitBindings   = "bindings"
)

// Unit is one named section of an object description. It is a closed union of
// *PropertiesUnit, *BindingsUnit and *OpaqueUnit.
type Unit interface {
	Name() string
	// Value returns the JSON shape of the unit.
	Value() any
	Clone() Unit
}

type PropertiesUnit struct {
	Values *Map
}

func (u *PropertiesUnit) Name() string { return UnitProperties }
func (u *PropertiesUnit) Value() any   { return u.Values }
func (u *PropertiesUnit) Clone() Unit  { return &PropertiesUnit{Values: u.Values.Clone()} }

// OpaqueUnit is a unit the editor does not interpret. Its payload round-trips unchanged.
type OpaqueUnit struct {
	UnitName string
	Raw      json.RawMessage
}

func (u *OpaqueUnit) Name() string { return u.UnitName }

func (u *OpaqueUnit) Value() any {
	v, err := DecodeValue(u.Raw)
	if err != nil {
		return u.Raw
	}
	return v
}

func (u *OpaqueUnit) Clone() Unit {
	return &OpaqueUnit{UnitName: u.UnitName, Raw: append(json.RawMessage(nil), u.Raw...)}
}

// Object is the description of one labeled object: a type header followed by ordered units.
type Object struct {
	// TypeKey is "prototype" or "object"; empty for header-less values.
	TypeKey string
	TypeID  string
	Units   []Unit
}

func NewObject(typeKey, typeID string) *Object {
	return &Object{TypeKey: typeKey, TypeID: typeID}
}

// ExportID is the module id used to re-instantiate the object.
func (o *Object) ExportID() string { return o.TypeID }

func (o *Object) Unit(name string) Unit {
	for _, u := range o.Units {
		if u.Name() == name {
			return u
		}
	}
	return nil
}

// SetUnit replaces the unit with the same name, or adds it. A new properties unit goes first.
func (o *Object) SetUnit(u Unit) {
	for i, cur := range o.Units {
		if cur.Name() == u.Name() {
			o.Units[i] = u
			return
		}
	}
	if u.Name() == UnitProperties {
		o.Units = append([]Unit{u}, o.Units...)
		return
	}
	o.Units = append(o.Units, u)
}

func (o *Object) RemoveUnit(name string) bool {
	for i, u := range o.Units {
		if u.Name() == name {
			o.Units = append(o.Units[:i], o.Units[i+1:]...)
			return true
		}
	}
	return false
}

// Properties returns the properties map, or nil when there is none.
func (o *Object) Properties() *Map {
	if pu, ok := o.Unit(UnitProperties).(*PropertiesUnit); ok {
		return pu.Values
	}
	return nil
}

func (o *Object) EnsureProperties() *Map {
	if p := o.Properties(); p != nil {
		return p
	}
	pu := &PropertiesUnit{Values: NewMap()}
	o.SetUnit(pu)
	return pu.Values
}

// Bindings returns the bindings unit, or nil when there is none or it could not be interpreted.
func (o *Object) Bindings() *BindingsUnit {
	if bu, ok := o.Unit(UnitBindings).(*BindingsUnit); ok {
		return bu
	}
	return nil
}

func (o *Object) EnsureBindings() *BindingsUnit {
	if b := o.Bindings(); b != nil {
		return b
	}
	bu := NewBindingsUnit()
	o.SetUnit(bu)
	return bu
}

func (o *Object) Clone() *Object {
	if o == nil {
		return nil
	}
	out := &Object{TypeKey: o.TypeKey, TypeID: o.TypeID, Units: make([]Unit, len(o.Units))}
	for i, u := range o.Units {
		out.Units[i] = u.Clone()
	}
	return out
}

// Map returns the whole description, unknown units included, in stored order.
func (o *Object) Map() *Map {
	m := NewMap()
	if o.TypeKey != "" {
		m.Set(o.TypeKey, o.TypeID)
	}
	for _, u := range o.Units {
		m.Set(u.Name(), CloneValue(u.Value()))
	}
	return m
}

func (o *Object) MarshalJSON() ([]byte, error) { return o.Map().MarshalJSON() }

func (o *Object) UnmarshalJSON(data []byte) error {
	obj, err := DecodeObject(data)
	if err != nil {
		return err
	}
	*o = *obj
	return nil
}

func DecodeObject(data []byte) (*Object, error) {
	v, err := DecodeValue(data)
	if err != nil {
		return nil, err
	}
	m, ok := v.(*Map)
	if !ok {
		return nil, fmt.Errorf("serialization: object description must be a JSON object, got %T", v)
	}
	return ObjectFromMap(m)
}

// ObjectFromMap interprets a decoded description. Units that do not have the expected shape
// are kept as opaque units.
func ObjectFromMap(m *Map) (*Object, error) {
	o := &Object{}
	for _, k := range m.Keys() {
		v, _ := m.Get(k)
		switch k {
		case TypePrototype, TypeObject:
			if s, ok := v.(string); ok && o.TypeKey == "" {
				o.TypeKey, o.TypeID = k, s
				continue
			}
		case UnitProperties:
			if pm, ok := v.(*Map); ok {
				o.Units = append(o.Units, &PropertiesUnit{Values: pm.Clone()})
				continue
			}
		case UnitBindings:
			if bu, err := decodeBindings(v); err == nil {
				o.Units = append(o.Units, bu)
				continue
			}
		}
		raw, err := encode(v)
		if err != nil {
			return nil, fmt.Errorf("unit %q: %w", k, err)
		}
		o.Units = append(o.Units, &OpaqueUnit{UnitName: k, Raw: raw})
	}
	return o, nil
}
