package domain

// SubjectType differentiates company vs staff principals.
type SubjectType string

const (
	SubjectTypeCompany SubjectType = "COMPANY"
	SubjectTypeStaff   SubjectType = "STAFF"
)

// Actor identifies who performs an operation.
type Actor struct {
	Type SubjectType
	ID   string
}

// StaffActor builds a staff actor.
func StaffActor(id string) Actor {
	return Actor{Type: SubjectTypeStaff, ID: id}
}

// CompanyActor builds a company actor.
func CompanyActor(id string) Actor {
	return Actor{Type: SubjectTypeCompany, ID: id}
}
