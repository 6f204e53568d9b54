// Package identity models the caller and the permission oracle the store
// consults. The oracle is an external collaborator: the store never decides
// grants itself, it only asks.
package identity

import (
	"sort"
	"strings"
)

// Caller is the explicit identity threaded into every store call.
type Caller struct {
	PackageName string

	// InBackground marks a call made while the app is not in the
	// foreground. Without a background-read grant such a caller is lowered
	// to self-only visibility.
	InBackground bool
}

// Oracle answers permission questions about a package.
type Oracle interface {
	HasWritePermission(packageName string) bool
	GrantedReadTypes(packageName string) []string
	HasBackgroundReadGrant(packageName string) bool
}

// IsGrantedReadType reports whether pkg may read data of type t owned by
// any app.
func IsGrantedReadType(o Oracle, pkg, t string) bool {
	for _, g := range o.GrantedReadTypes(pkg) {
		if g == t {
			return true
		}
	}
	return false
}

// Grant is the permission set of one package.
type Grant struct {
	Write          bool
	BackgroundRead bool
	ReadTypes      []string
}

// StaticOracle serves grants from a fixed table, typically loaded from
// configuration. Unknown packages have no permissions.
type StaticOracle struct {
	grants map[string]Grant
}

// NewStaticOracle copies grants into a new oracle.
func NewStaticOracle(grants map[string]Grant) *StaticOracle {
	o := &StaticOracle{grants: make(map[string]Grant, len(grants))}
	for pkg, g := range grants {
		types := append([]string(nil), g.ReadTypes...)
		sort.Strings(types)
		g.ReadTypes = types
		o.grants[pkg] = g
	}
	return o
}

func (o *StaticOracle) HasWritePermission(pkg string) bool {
	return o.grants[pkg].Write
}

func (o *StaticOracle) GrantedReadTypes(pkg string) []string {
	types := o.grants[pkg].ReadTypes
	if types == nil {
		return []string{}
	}
	return append([]string(nil), types...)
}

func (o *StaticOracle) HasBackgroundReadGrant(pkg string) bool {
	return o.grants[pkg].BackgroundRead
}

// Packages lists the packages with an entry, sorted.
func (o *StaticOracle) Packages() []string {
	pkgs := make([]string, 0, len(o.grants))
	for pkg := range o.grants {
		pkgs = append(pkgs, pkg)
	}
	sort.Strings(pkgs)
	return pkgs
}

// String renders the grant compactly for logs.
func (g Grant) String() string {
	var flags []string
	if g.Write {
		flags = append(flags, "write")
	}
	if g.BackgroundRead {
		flags = append(flags, "background")
	}
	if len(g.ReadTypes) > 0 {
		flags = append(flags, "read="+strings.Join(g.ReadTypes, ","))
	}
	if len(flags) == 0 {
		return "none"
	}
	return strings.Join(flags, " ")
}
