/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package editing

import (
	"reeleditor/internal/serialization"
)

// UnitVisitor serializes units the ProxyVisitor does not know. Returning false declines, and the
// unit is written verbatim.
type UnitVisitor interface {
	VisitUnit(p *Proxy, unit serialization.Unit) (any, bool)
}

type UnitVisitorFunc func(p *Proxy, unit serialization.Unit) (any, bool)

func (f UnitVisitorFunc) VisitUnit(p *Proxy, unit serialization.Unit) (any, bool) { return f(p, unit) }

type declineUnits struct{}

func (declineUnits) VisitUnit(*Proxy, serialization.Unit) (any, bool) { return nil, false }

// ProxyVisitor writes a proxy graph back to its serialized form.
//
// Proxies are written in label order, the owner first. The unit order inside a description is
// fixed: the type header, properties, bindings, then every other unit in its original relative
// order. Bindings therefore move ahead of units such as listeners that preceded them. A proxy
// referenced from a value is written as {"@": label} when it is emitted at top level or was
// already written, and inline otherwise.
type ProxyVisitor struct {
	units    UnitVisitor
	topLevel map[string]bool
	emitted  map[string]bool
}

func NewProxyVisitor(units UnitVisitor) *ProxyVisitor {
	if units == nil {
		units = declineUnits{}
	}
	return &ProxyVisitor{units: units}
}

// Visit serializes proxies, keyed by label.
func (v *ProxyVisitor) Visit(proxies map[string]*Proxy) *serialization.Graph {
	v.topLevel = make(map[string]bool, len(proxies))
	v.emitted = map[string]bool{}
	labels := make([]string, 0, len(proxies))
	for l := range proxies {
		labels = append(labels, l)
		v.topLevel[l] = true
	}
	serialization.SortLabels(labels)

	g := serialization.NewGraph()
	for _, l := range labels {
		g.Set(l, v.visitProxy(proxies[l]))
	}
	return g
}

func (v *ProxyVisitor) visitProxy(p *Proxy) *serialization.Object {
	v.emitted[p.label] = true
	p.mu.RLock()
	desc := p.desc
	p.mu.RUnlock()

	typeKey := desc.TypeKey
	if typeKey == "" && p.exportID != "" {
		typeKey = serialization.TypePrototype
	}
	out := serialization.NewObject(typeKey, p.exportID)

	if props := desc.Properties(); props.Len() > 0 {
		out.Units = append(out.Units, &serialization.PropertiesUnit{Values: v.visitMap(props)})
	}
	if bu := desc.Bindings(); bu.Len() > 0 {
		out.Units = append(out.Units, bu.Clone())
	}
	for _, u := range desc.Units {
		switch u.(type) {
		case *serialization.PropertiesUnit, *serialization.BindingsUnit:
			continue
		}
		if val, ok := v.units.VisitUnit(p, u); ok {
			raw, err := serialization.Marshal(val)
			if err == nil {
				out.Units = append(out.Units, &serialization.OpaqueUnit{UnitName: u.Name(), Raw: raw})
				continue
			}
		}
		out.Units = append(out.Units, u.Clone())
	}
	return out
}

func (v *ProxyVisitor) visitValue(val any) any {
	switch t := val.(type) {
	case *Proxy:
		if v.topLevel[t.label] || v.emitted[t.label] {
			return serialization.ObjectRef{Label: t.label}
		}
		return v.visitProxy(t).Map()
	case *serialization.Map:
		return v.visitMap(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = v.visitValue(e)
		}
		return out
	default:
		return serialization.CloneValue(val)
	}
}

func (v *ProxyVisitor) visitMap(m *serialization.Map) *serialization.Map {
	out := serialization.NewMap()
	for _, k := range m.Keys() {
		val, _ := m.Get(k)
		out.Set(k, v.visitValue(val))
	}
	return out
}
