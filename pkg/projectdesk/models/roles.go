package models

// AdminRoleID identifies a row of the admin_roles catalog. Lower ids rank higher.
type AdminRoleID uint

const (
	AdminRoleRoot        AdminRoleID = 1
	AdminRoleProfessor   AdminRoleID = 2
	AdminRoleTutor       AdminRoleID = 3
	AdminRoleCoordinator AdminRoleID = 4
)

// String returns the catalog name of the role
func (r AdminRoleID) String() string {
	switch r {
	case AdminRoleRoot:
		return "root"
	case AdminRoleProfessor:
		return "professor"
	case AdminRoleTutor:
		return "tutor"
	case AdminRoleCoordinator:
		return "coordinator"
	}
	return "unknown"
}

// Valid reports whether r is one of the seeded roles
func (r AdminRoleID) Valid() bool {
	return r >= AdminRoleRoot && r <= AdminRoleCoordinator
}

// StudentRoleID identifies a row of the student_roles catalog
type StudentRoleID uint

const (
	StudentRoleGroupLeader StudentRoleID = 1
	StudentRoleMember      StudentRoleID = 2
)

// String returns the catalog name of the role
func (r StudentRoleID) String() string {
	switch r {
	case StudentRoleGroupLeader:
		return "group_leader"
	case StudentRoleMember:
		return "member"
	}
	return "unknown"
}

// Valid reports whether r is one of the seeded roles
func (r StudentRoleID) Valid() bool {
	return r == StudentRoleGroupLeader || r == StudentRoleMember
}

// AdminRole is a named admin role
type AdminRole struct {
	ID   AdminRoleID `gorm:"primarykey" json:"id"`
	Name string      `gorm:"uniqueIndex;not null;size:50" json:"name"`
}

// StudentRole is a named role a student holds inside a group
type StudentRole struct {
	ID   StudentRoleID `gorm:"primarykey" json:"id"`
	Name string        `gorm:"uniqueIndex;not null;size:50" json:"name"`
}

// AdminRoles returns the seed rows for admin_roles
func AdminRoles() []AdminRole {
	ids := []AdminRoleID{AdminRoleRoot, AdminRoleProfessor, AdminRoleTutor, AdminRoleCoordinator}
	roles := make([]AdminRole, len(ids))
	for i, id := range ids {
		roles[i] = AdminRole{ID: id, Name: id.String()}
	}
	return roles
}

// StudentRoles returns the seed rows for student_roles
func StudentRoles() []StudentRole {
	return []StudentRole{
		{ID: StudentRoleGroupLeader, Name: StudentRoleGroupLeader.String()},
		{ID: StudentRoleMember, Name: StudentRoleMember.String()},
	}
}
