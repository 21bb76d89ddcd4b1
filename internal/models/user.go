package models

// User is a platform end-user as known to the directory.
type User struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Phone    string `json:"phone,omitempty"`
	Area     string `json:"area,omitempty"`
	BranchID string `json:"branch_id,omitempty"`
}

// Branch is a physical location of the platform.
type Branch struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Operator is the authenticated console user on whose behalf sessions
// run. Branch-scoped operators only see conversations for their branches.
type Operator struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Role     string   `json:"role"` // "admin" or "branch"
	Branches []string `json:"branches,omitempty"`
}

// BranchScoped reports whether the operator's roster must be filtered
// down to their permitted branches.
func (o *Operator) BranchScoped() bool {
	return o.Role == "branch"
}
