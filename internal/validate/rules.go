package validate

// ConditionalRule makes one field required only when another resolves.
//
// Rules live in a table rather than in engine code so new conditions are a
// data change, not an engine change.
type ConditionalRule struct {
	// When is the field whose presence (column mapping or constant) arms the
	// rule.
	When string
	// Then is the field that becomes required while the rule is armed.
	Then string
	// Message overrides the default error text when non-empty.
	Message string
}

// DefaultConditionalRules is the shipped rule table. Bank details travel in
// pairs, and payroll export needs a salary identifier once an account is
// present.
func DefaultConditionalRules() []ConditionalRule {
	return []ConditionalRule{
		{When: "bankAccount.accountNumber", Then: "bankAccount.registrationNumber"},
		{When: "bankAccount.registrationNumber", Then: "bankAccount.accountNumber"},
		{When: "bankAccount.accountNumber", Then: "salaryIdentifier"},
	}
}
