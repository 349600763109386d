package mapper

import (
	"strings"

	"staffimport/internal/schema"
)

// builtinAliases maps schema field names to header fragments commonly seen in
// the wild for that field. Patterns are matched on normalized forms
// (lowercase, alphanumeric only), so entries here are written normalized.
var builtinAliases = map[string][]string{
	"email":     {"email", "emailaddress", "mail", "userprincipalname"},
	"userName":  {"username", "login", "account"},
	"firstName": {"firstname", "givenname", "forename"},
	"lastName":  {"lastname", "surname", "familyname"},
	"birthDate": {"birthdate", "dateofbirth", "dob", "born"},
	"hiredFrom": {"hiredfrom", "hiredate", "startdate", "employedsince"},
	"gender":    {"gender", "sex"},

	"cellPhone": {"cellphone", "mobile", "mobilephone", "phonenumber", "phone"},
	"street1":   {"street", "address", "addressline"},
	"zip":       {"zip", "zipcode", "postalcode", "postcode"},
	"city":      {"city", "town"},

	"departments":    {"department", "division"},
	"employeeGroups": {"employeegroup", "group", "team"},
	"employeeTypes":  {"employeetype", "contracttype", "employment"},
	"supervisor":     {"supervisor", "manager", "reportsto"},

	"ssn":                            {"ssn", "socialsecurity", "nationalid", "cpr"},
	"jobTitle":                       {"jobtitle", "title", "position", "role"},
	"salaryIdentifier":               {"salaryidentifier", "salaryid", "payrollid", "payrollnumber"},
	"bankAccount.accountNumber":      {"accountnumber", "bankaccount", "iban"},
	"bankAccount.registrationNumber": {"registrationnumber", "regnumber", "bankreg", "sortcode", "routingnumber"},
}

// aliasPatterns returns the fuzzy patterns for a field: its own name, its
// display name and the builtin alias list, all normalized and deduplicated.
func aliasPatterns(fd schema.FieldDefinition) []string {
	seen := make(map[string]struct{}, 4)
	var out []string

	add := func(p string) {
		p = normalizeHeader(p)
		if p == "" {
			return
		}
		if _, ok := seen[p]; ok {
			return
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}

	add(fd.Name)
	add(fd.DisplayName)
	// Dotted leaves also try the bare sub-field name ("accountNumber").
	if i := strings.LastIndexByte(fd.Name, '.'); i >= 0 {
		add(fd.Name[i+1:])
	}
	for _, a := range builtinAliases[fd.Name] {
		add(a)
	}
	return out
}

// normalizeHeader lowers and strips everything but letters and digits, so
// "First Name", "first_name" and "FIRST-NAME" compare equal.
func normalizeHeader(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
