package models

import "time"

// UserRole represents the available roles for authorization.
type UserRole string

const (
	RoleAdmin      UserRole = "ADMIN"
	RoleRegistrar  UserRole = "REGISTRAR"
	RoleInstructor UserRole = "INSTRUCTOR"
	RoleBursar     UserRole = "BURSAR"
	RoleStudent    UserRole = "STUDENT"
)

// Capability strings checked by the permission middleware. Each mutating
// endpoint declares the capability it requires next to its route wiring.
const (
	PermStudentsView    = "students.view"
	PermStudentsEdit    = "students.edit"
	PermCatalogView     = "catalog.view"
	PermCatalogEdit     = "catalog.edit"
	PermTermsEdit       = "terms.edit"
	PermEnrollmentsView = "enrollments.view"
	PermEnrollmentsEdit = "enrollments.edit"
	PermGradesEdit      = "grades.edit"
	PermGradesFinalize  = "grades.finalize"
	PermTranscriptsView = "transcripts.view"
	PermBookingsView    = "bookings.view"
	PermBookingsEdit    = "bookings.edit"
	PermBillingView     = "billing.view"
	PermBillingEdit     = "billing.edit"
	PermUsersManage     = "users.manage"
	PermAdminReconcile  = "admin.reconcile"
)

var rolePermissions = map[UserRole][]string{
	RoleAdmin: {
		PermStudentsView, PermStudentsEdit, PermCatalogView, PermCatalogEdit,
		PermTermsEdit, PermEnrollmentsView, PermEnrollmentsEdit, PermGradesEdit,
		PermGradesFinalize, PermTranscriptsView, PermBookingsView, PermBookingsEdit,
		PermBillingView, PermBillingEdit, PermUsersManage, PermAdminReconcile,
	},
	RoleRegistrar: {
		PermStudentsView, PermStudentsEdit, PermCatalogView, PermCatalogEdit,
		PermTermsEdit, PermEnrollmentsView, PermEnrollmentsEdit,
		PermTranscriptsView, PermBookingsView, PermBookingsEdit,
	},
	RoleInstructor: {
		PermCatalogView, PermEnrollmentsView, PermGradesEdit, PermGradesFinalize,
		PermBookingsView,
	},
	RoleBursar: {
		PermStudentsView, PermBillingView, PermBillingEdit,
	},
	RoleStudent: {
		PermCatalogView, PermTranscriptsView,
	},
}

// PermissionsForRole returns the capability set granted to a role.
func PermissionsForRole(role UserRole) []string {
	return rolePermissions[role]
}

// RoleHasPermission reports whether the role grants the capability.
func RoleHasPermission(role UserRole, permission string) bool {
	for _, p := range rolePermissions[role] {
		if p == permission {
			return true
		}
	}
	return false
}

// User represents an application user stored in the users table.
type User struct {
	ID           string     `db:"id" json:"id"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	FullName     string     `db:"full_name" json:"full_name"`
	Role         UserRole   `db:"role" json:"role"`
	StudentID    *string    `db:"student_id" json:"student_id,omitempty"`
	Active       bool       `db:"active" json:"active"`
	LastLogin    *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// UserFilter captures filtering criteria for listing users.
type UserFilter struct {
	Role      *UserRole
	Active    *bool
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
