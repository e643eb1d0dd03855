package model

// ParameterDirection tells how a procedure parameter is passed
type ParameterDirection int

// Parameter directions
const (
	DirectionIn ParameterDirection = iota + 1
	DirectionOut
	DirectionInOut
	DirectionReturn
)

// String returns the persisted form of the direction
func (d ParameterDirection) String() string {
	switch d {
	case DirectionIn:
		return "in"
	case DirectionOut:
		return "out"
	case DirectionInOut:
		return "in_out"
	case DirectionReturn:
		return "return"
	}
	return ""
}

// ParseParameterDirection reverses String
func ParseParameterDirection(s string) ParameterDirection {
	switch s {
	case "in":
		return DirectionIn
	case "out":
		return DirectionOut
	case "in_out":
		return DirectionInOut
	case "return":
		return DirectionReturn
	}
	return 0
}

// Procedure represents a stored procedure or function
type Procedure struct {
	Name           string
	Catalog        string
	Schema         string
	ReturningValue bool
	Parameters     []ProcedureParameter
}

// ProcedureParameter is a single procedure argument or result
type ProcedureParameter struct {
	Name      string
	Type      SQLType
	Direction ParameterDirection
	MaxLength int
	Precision int
}

// Clone returns a copy of the procedure
func (p *Procedure) Clone() *Procedure {
	c := *p
	c.Parameters = append([]ProcedureParameter(nil), p.Parameters...)
	return &c
}
