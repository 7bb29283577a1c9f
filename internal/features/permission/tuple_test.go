package permission

import (
	"reflect"
	"testing"
)

func TestParseTuple(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Tuple
		ok    bool
	}{
		{
			name:  "document file tuple",
			input: "document:file:/reports/q1.pdf:read",
			want:  Tuple{Scope: "document", Type: "file", Key: "/reports/q1.pdf", Action: "read"},
			ok:    true,
		},
		{
			name:  "system wildcard tuple",
			input: "system:*:*:manage",
			want:  Tuple{Scope: "system", Type: "*", Key: "*", Action: "manage"},
			ok:    true,
		},
		{
			name:  "too few fields",
			input: "document:file:read",
			ok:    false,
		},
		{
			name:  "too many fields",
			input: "document:file:/a:/b:read",
			ok:    false,
		},
		{
			name:  "empty field",
			input: "document::/a:read",
			ok:    false,
		},
		{
			name:  "empty string",
			input: "",
			ok:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseTuple(tt.input)
			if ok != tt.ok {
				t.Fatalf("ParseTuple(%q) ok = %v, want %v", tt.input, ok, tt.ok)
			}
			if ok && got != tt.want {
				t.Errorf("ParseTuple(%q) = %+v, want %+v", tt.input, got, tt.want)
			}
		})
	}
}

func TestTupleStringRoundTrip(t *testing.T) {
	original := Tuple{Scope: "document", Type: "folder", Key: "/HR/*", Action: "use_for_ai_chat"}

	parsed, ok := ParseTuple(original.String())
	if !ok {
		t.Fatalf("round trip failed to parse %q", original.String())
	}
	if parsed != original {
		t.Errorf("round trip = %+v, want %+v", parsed, original)
	}
}

func TestTupleSatisfies(t *testing.T) {
	tests := []struct {
		name     string
		granted  string
		required string
		want     bool
	}{
		{
			name:     "exact match",
			granted:  "document:file:/a.txt:read",
			required: "document:file:/a.txt:read",
			want:     true,
		},
		{
			name:     "action mismatch",
			granted:  "document:file:/a.txt:read",
			required: "document:file:/a.txt:write",
			want:     false,
		},
		{
			name:     "manage implies any action",
			granted:  "document:file:/a.txt:manage",
			required: "document:file:/a.txt:delete",
			want:     true,
		},
		{
			name:     "star action implies any action",
			granted:  "system:user:*:*",
			required: "system:user:42:delete",
			want:     true,
		},
		{
			name:     "folder kind does not cover file kind",
			granted:  "document:folder:/HR/*:use_for_ai_chat",
			required: "document:file:/HR/policies/leave.pdf:use_for_ai_chat",
			want:     false,
		},
		{
			name:     "folder prefix matches nested key of same kind",
			granted:  "document:folder:/HR/*:use_for_ai_chat",
			required: "document:folder:/HR/budget.xlsx:use_for_ai_chat",
			want:     true,
		},
		{
			name:     "folder prefix with wildcard type",
			granted:  "document:*:/HR/*:use_for_ai_chat",
			required: "document:file:/HR/policies/leave.pdf:use_for_ai_chat",
			want:     true,
		},
		{
			name:     "folder prefix rejects sibling path",
			granted:  "document:*:/HR/*:read",
			required: "document:file:/Finance/q1.pdf:read",
			want:     false,
		},
		{
			name:     "key wildcard matches anything",
			granted:  "system:setting:*:manage",
			required: "system:setting:smtp_host:write",
			want:     true,
		},
		{
			name:     "scope mismatch",
			granted:  "system:file:/a.txt:read",
			required: "document:file:/a.txt:read",
			want:     false,
		},
		{
			name:     "wildcard scope and type",
			granted:  "*:*:*:manage",
			required: "system:guard:7:delete",
			want:     true,
		},
		{
			name:     "granted prefix is not a wildcard without slash-star",
			granted:  "document:file:/HR:read",
			required: "document:file:/HR/doc.pdf:read",
			want:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			granted, ok := ParseTuple(tt.granted)
			if !ok {
				t.Fatalf("bad granted fixture %q", tt.granted)
			}
			required, ok := ParseTuple(tt.required)
			if !ok {
				t.Fatalf("bad required fixture %q", tt.required)
			}
			if got := granted.Satisfies(required); got != tt.want {
				t.Errorf("Satisfies(%q, %q) = %v, want %v", tt.granted, tt.required, got, tt.want)
			}
		})
	}
}

func TestSatisfiesRejectsEmptyRequiredFields(t *testing.T) {
	granted := Tuple{Scope: "*", Type: "*", Key: "*", Action: "manage"}

	malformed := []Tuple{
		{},
		{Scope: "document"},
		{Scope: "document", Type: "file", Key: "/a"},
		{Scope: "document", Type: "file", Action: "read"},
	}
	for _, required := range malformed {
		if granted.Satisfies(required) {
			t.Errorf("malformed required tuple %+v must not match", required)
		}
	}
}

func TestParseSetDropsMalformed(t *testing.T) {
	raw := []string{
		"document:file:/a.txt:read",
		"not-a-tuple",
		"document::broken:read",
		"system:report:*:read",
	}

	set := ParseSet(raw)
	want := PermissionSet{
		{Scope: "document", Type: "file", Key: "/a.txt", Action: "read"},
		{Scope: "system", Type: "report", Key: "*", Action: "read"},
	}
	if !reflect.DeepEqual(set, want) {
		t.Errorf("ParseSet = %+v, want %+v", set, want)
	}
}

func TestPermissionSetAllows(t *testing.T) {
	set := ParseSet([]string{
		"document:folder:/HR/*:use_for_ai_chat",
		"system:report:*:read",
	})

	required, _ := ParseTuple("system:report:monthly:read")
	if !set.Allows(required) {
		t.Error("expected report grant to allow monthly report read")
	}

	denied, _ := ParseTuple("system:report:monthly:write")
	if set.Allows(denied) {
		t.Error("read grant must not allow write")
	}

	if (PermissionSet{}).Allows(required) {
		t.Error("empty set must allow nothing")
	}
}
