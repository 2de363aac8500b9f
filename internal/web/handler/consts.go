package handler

const (
	// RouterRootPath is the root path of a route group.
	RouterRootPath = "/"

	// ErrNilAppDepsMsg is used if the app or deps pointer is nil.
	ErrNilAppDepsMsg = "app or deps is nil"

	// ResourceAdminScope lets a caller create and delete resources and list every permission.
	ResourceAdminScope = "keycloak:resource:admin"

	// TeamAdminScope lets a caller remove a team from every permission.
	TeamAdminScope = "okdata:team:admin"
)
