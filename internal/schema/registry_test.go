package schema

import (
	"errors"
	"testing"
)

const sampleDoc = `{
  "properties": {
    "email":     {"type": "string", "format": "email", "unique": true},
    "firstName": {"type": "string"},
    "lastName":  {"type": "string"},
    "hiredFrom": {"type": "string", "format": "date"},
    "departments": {
      "type": "string",
      "values": [{"id": 1, "name": "Kitchen"}, {"id": 2, "name": "Bar"}]
    },
    "gender": {"type": "string", "enum": ["male", "female"]},
    "custom_212": {"type": "string", "title": "Shoe Size"},
    "bankAccount": {"$ref": "#/definitions/bankAccount"}
  },
  "required": ["email", "firstName", "lastName", "departments", "bankAccount"],
  "readOnly": ["email"],
  "definitions": {
    "bankAccount": {
      "type": "object",
      "properties": {
        "registrationNumber": {"type": "string"},
        "accountNumber":      {"type": "string"}
      },
      "required": ["accountNumber"]
    }
  }
}`

func mustLoad(t *testing.T) *Registry {
	t.Helper()
	r, err := Load([]byte(sampleDoc))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return r
}

func TestLoadFlattensComplexFields(t *testing.T) {
	r := mustLoad(t)

	parent, ok := r.Field("bankAccount")
	if !ok {
		t.Fatalf("bankAccount not registered")
	}
	want := []string{"bankAccount.accountNumber", "bankAccount.registrationNumber"}
	if len(parent.SubFields) != len(want) {
		t.Fatalf("SubFields = %v, want %v", parent.SubFields, want)
	}
	for i := range want {
		if parent.SubFields[i] != want[i] {
			t.Fatalf("SubFields[%d] = %q, want %q", i, parent.SubFields[i], want[i])
		}
	}

	leaf, ok := r.Field("bankAccount.accountNumber")
	if !ok {
		t.Fatalf("flattened leaf not addressable")
	}
	if !leaf.IsRequired {
		t.Errorf("accountNumber should inherit required (parent required + leaf required)")
	}
	if reg, _ := r.Field("bankAccount.registrationNumber"); reg.IsRequired {
		t.Errorf("registrationNumber is not in the nested required list; must not be required")
	}
}

func TestRegistryFlags(t *testing.T) {
	r := mustLoad(t)

	if !r.IsRequired("email") || !r.IsUnique("email") || !r.IsReadOnly("email") {
		t.Errorf("email flags wrong: required=%v unique=%v readOnly=%v",
			r.IsRequired("email"), r.IsUnique("email"), r.IsReadOnly("email"))
	}
	if r.IsRequired("gender") {
		t.Errorf("gender must not be required")
	}
	if !r.IsCustom("custom_212") {
		t.Errorf("custom_212 must be flagged custom")
	}
	if fd, _ := r.Field("custom_212"); fd.DisplayName != "Shoe Size" {
		t.Errorf("title should win over derived display name, got %q", fd.DisplayName)
	}
	if fd, _ := r.Field("firstName"); fd.DisplayName != "First Name" {
		t.Errorf("derived display name = %q, want %q", fd.DisplayName, "First Name")
	}
}

func TestEnumOptions(t *testing.T) {
	r := mustLoad(t)

	opts := r.EnumOptions("departments")
	if len(opts) != 2 || opts[0].Name != "Kitchen" || opts[1].Name != "Bar" {
		t.Fatalf("departments options = %v", opts)
	}

	// String enums get synthetic 1-based ids in declared order.
	gender := r.EnumOptions("gender")
	if len(gender) != 2 || gender[0] != (Option{ID: 1, Name: "male"}) {
		t.Fatalf("gender options = %v", gender)
	}

	if r.EnumOptions("firstName") != nil {
		t.Errorf("non-enumerated field must return nil options")
	}
}

func TestFieldsOrderIsDeterministic(t *testing.T) {
	r := mustLoad(t)

	a := r.Fields()
	b := r.Fields()
	if len(a) != len(b) {
		t.Fatalf("two calls disagree on length")
	}
	for i := range a {
		if a[i].Name != b[i].Name {
			t.Fatalf("order not stable at %d: %q vs %q", i, a[i].Name, b[i].Name)
		}
	}

	// Required fields come before optional ones.
	seenOptional := false
	for _, fd := range a {
		if !fd.IsRequired {
			seenOptional = true
		} else if seenOptional {
			t.Fatalf("required field %q ordered after an optional field", fd.Name)
		}
	}
}

func TestLeavesExcludeComplexParents(t *testing.T) {
	r := mustLoad(t)
	for _, fd := range r.Leaves() {
		if len(fd.SubFields) > 0 {
			t.Fatalf("leaf listing contains complex parent %q", fd.Name)
		}
	}
}

func TestLoadFailures(t *testing.T) {
	cases := []struct {
		name string
		doc  string
	}{
		{"malformed json", `{"properties": `},
		{"no properties", `{"required": ["email"]}`},
		{"dangling ref", `{"properties": {"x": {"$ref": "#/definitions/gone"}}}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Load([]byte(tc.doc)); !errors.Is(err, ErrSchemaUnavailable) {
				t.Fatalf("want ErrSchemaUnavailable, got %v", err)
			}
		})
	}
}
