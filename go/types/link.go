/*
Copyright 2024 The Vexel Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package types

// Link is a read-only view pairing a source object, a link name, and one
// target object. Link properties live on the target's shape under their
// "@"-prefixed names; the view exposes them without materializing a
// separate value.
type Link struct {
	name   string
	source *Object
	target *Object
}

// Name returns the link's name.
func (l *Link) Name() string {
	return l.name
}

// Source returns the object the link originates from.
func (l *Link) Source() *Object {
	return l.source
}

// Target returns the linked object.
func (l *Link) Target() *Object {
	return l.target
}

// Property returns the named link property's value.
func (l *Link) Property(name string) (any, bool) {
	return l.target.Get("@" + name)
}

// Equal compares source identity, name and target identity.
func (l *Link) Equal(other any) bool {
	o, ok := other.(*Link)
	if !ok {
		return false
	}
	return l.name == o.name && l.source.Equal(o.source) && l.target.Equal(o.target)
}

// LinkSet is the multi-link counterpart of Link: one source, one link
// name, many targets.
type LinkSet struct {
	name    string
	source  *Object
	targets *Set
}

// Name returns the link's name.
func (ls *LinkSet) Name() string {
	return ls.name
}

// Source returns the object the links originate from.
func (ls *LinkSet) Source() *Object {
	return ls.source
}

// Len returns the number of targets.
func (ls *LinkSet) Len() int {
	return ls.targets.Len()
}

// Link returns the i-th target as a Link view.
func (ls *LinkSet) Link(i int) (*Link, bool) {
	target, ok := ls.targets.Get(i).(*Object)
	if !ok {
		return nil, false
	}
	return &Link{name: ls.name, source: ls.source, target: target}, true
}

// Targets returns the underlying target set.
func (ls *LinkSet) Targets() *Set {
	return ls.targets
}
