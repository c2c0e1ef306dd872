package authz

const (
	RoleSuperAdmin = "super-admin"
	RoleAdmin      = "admin"
	RoleMember     = "member"
	RoleAnonymous  = "anonymous"
)

const (
	ActionRead = "read"
	// ActionManage guards irreversible site-wide changes. It is granted more
	// narrowly than ActionAdmin.
	ActionManage = "manage"
	ActionAdmin  = "admin"
)

const DomainGlobal = "global"

const (
	ObjectIAMSession      = "iam.session"
	ObjectAdminSiteConfig = "admin.site-config"
)
