package permission

import "strings"

// Tuple wire format: "<scope>:<type>:<key>:<action>", exactly 4 fields.
const TupleSeparator = ":"

// Scopes partition the permission space
const (
	ScopeDocument = "document"
	ScopeSystem   = "system"
)

const (
	// Wildcard matches any value in a single tuple field
	Wildcard = "*"
	// ActionManage implies every other action on the same resource
	ActionManage = "manage"

	folderWildcard = "/*"
)

// Tuple is the canonical in-memory form of one grant or one required
// check. Every field is non-empty in a well-formed tuple.
type Tuple struct {
	Scope  string
	Type   string
	Key    string
	Action string
}

// ParseTuple decodes the wire format. ok is false for anything that
// does not split into exactly 4 non-empty fields; callers treat such
// input as matching nothing rather than as an error.
func ParseTuple(s string) (Tuple, bool) {
	parts := strings.Split(s, TupleSeparator)
	if len(parts) != 4 {
		return Tuple{}, false
	}
	for _, p := range parts {
		if p == "" {
			return Tuple{}, false
		}
	}
	return Tuple{Scope: parts[0], Type: parts[1], Key: parts[2], Action: parts[3]}, true
}

func (t Tuple) String() string {
	return t.Scope + TupleSeparator + t.Type + TupleSeparator + t.Key + TupleSeparator + t.Action
}

// TupleFromDocument encodes a stored document grant
func TupleFromDocument(g *DocumentGrant) Tuple {
	return Tuple{Scope: ScopeDocument, Type: g.ResourceKind, Key: g.ResourcePath, Action: g.Permission}
}

// TupleFromSystem encodes a stored system grant
func TupleFromSystem(g *SystemGrant) Tuple {
	return Tuple{Scope: ScopeSystem, Type: g.ResourceType, Key: g.ResourceID, Action: g.Permission}
}

// Satisfies reports whether this granted tuple covers the required one.
// A malformed (partially empty) required tuple matches nothing, which
// keeps the matcher total over arbitrary input.
func (t Tuple) Satisfies(required Tuple) bool {
	if required.Scope == "" || required.Type == "" || required.Key == "" || required.Action == "" {
		return false
	}
	if t.Scope != required.Scope && t.Scope != Wildcard {
		return false
	}
	if t.Type != required.Type && t.Type != Wildcard {
		return false
	}
	if !matchKey(t.Key, required.Key) {
		return false
	}
	return t.Action == required.Action || t.Action == ActionManage || t.Action == Wildcard
}

// matchKey applies the key grammar: "*" matches anything, a trailing
// "/*" matches every key sharing the prefix, otherwise exact equality.
func matchKey(pattern, key string) bool {
	if pattern == Wildcard {
		return true
	}
	if strings.HasSuffix(pattern, folderWildcard) {
		return strings.HasPrefix(key, strings.TrimSuffix(pattern, folderWildcard))
	}
	return pattern == key
}

// PermissionSet is a user's resolved grants in store order. Duplicates
// are permitted; they only collapse in the structured view.
type PermissionSet []Tuple

// ParseSet decodes raw tuple strings, silently dropping malformed entries
func ParseSet(raw []string) PermissionSet {
	set := make(PermissionSet, 0, len(raw))
	for _, s := range raw {
		if t, ok := ParseTuple(s); ok {
			set = append(set, t)
		}
	}
	return set
}

// Allows reports whether any tuple in the set satisfies the required one
func (s PermissionSet) Allows(required Tuple) bool {
	for _, t := range s {
		if t.Satisfies(required) {
			return true
		}
	}
	return false
}
