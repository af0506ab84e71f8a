package domain

type SourceID string

// Company identifies the provider implementation inside the automation library.
type Company string

const (
	// Source IDs
	SourceLeumi    SourceID = "leumi"
	SourceIsracard SourceID = "isracard"
	SourceMax      SourceID = "max"

	// Companies
	CompanyLeumi    Company = "leumi"
	CompanyIsracard Company = "isracard"
	CompanyMax      Company = "max"
)

// SelectorAll is the CLI selector meaning every configured source.
const SelectorAll = "all"

// SourceIDToCompany maps the built-in sources to their automation company.
var SourceIDToCompany = map[SourceID]Company{
	SourceLeumi:    CompanyLeumi,
	SourceIsracard: CompanyIsracard,
	SourceMax:      CompanyMax,
}

// Credentials holds the login fields of one source, keyed by field name.
type Credentials map[string]string
