package identity

import (
	"sort"

	"github.com/roach88/healthstore/internal/errs"
)

// Scope is the visibility a read resolves to. The self leg returns the
// caller's own rows; the any-owner leg returns rows of AnyOwnerTypes
// regardless of owner. When both legs are present the store combines them
// with a deduplicating UNION.
type Scope struct {
	Self bool

	// SelfTypes restricts the self leg. nil means no type restriction.
	SelfTypes []string

	AnyOwnerTypes []string
}

// SelfOnly reports whether the read can only see the caller's own rows.
func (s Scope) SelfOnly() bool {
	return len(s.AnyOwnerTypes) == 0
}

// SelfAllows reports whether the self leg admits type t.
func (s Scope) SelfAllows(t string) bool {
	return s.Self && (s.SelfTypes == nil || contains(s.SelfTypes, t))
}

// AnyOwnerAllows reports whether the any-owner leg admits type t.
func (s Scope) AnyOwnerAllows(t string) bool {
	return contains(s.AnyOwnerTypes, t)
}

// Resolve computes the read scope of caller over the requested types.
//
// Precedence:
//  1. background without a background-read grant: writers see their own
//     rows, readers their own rows of granted types;
//  2. writer with no granted types: own rows;
//  3. writer with granted types: own rows plus granted types from anyone;
//  4. reader: granted types from anyone.
//
// A caller with neither write permission nor any granted read type gets a
// permission error.
func Resolve(o Oracle, caller Caller, requested []string) (Scope, error) {
	writer := o.HasWritePermission(caller.PackageName)
	allGranted := o.GrantedReadTypes(caller.PackageName)
	if !writer && len(allGranted) == 0 {
		return Scope{}, &errs.Error{
			Code:    errs.CodePermission,
			Message: "caller has neither write permission nor any granted read type",
			Details: map[string]string{"package": caller.PackageName},
		}
	}
	granted := intersect(allGranted, requested)

	if caller.InBackground && !o.HasBackgroundReadGrant(caller.PackageName) {
		if writer {
			return Scope{Self: true}, nil
		}
		return Scope{Self: true, SelfTypes: granted}, nil
	}
	if writer && len(allGranted) == 0 {
		return Scope{Self: true}, nil
	}
	if writer {
		return Scope{Self: true, AnyOwnerTypes: granted}, nil
	}
	return Scope{AnyOwnerTypes: granted}, nil
}

func intersect(granted, requested []string) []string {
	out := []string{}
	for _, t := range requested {
		if contains(granted, t) && !contains(out, t) {
			out = append(out, t)
		}
	}
	sort.Strings(out)
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
