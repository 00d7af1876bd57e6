// config/security_config.go
package config

type SecurityLevel int

const (
	SecurityPublic SecurityLevel = iota // No authentication
	SecurityUser                        // Any valid access token
	SecurityAdmin                       // Access token with the admin role
)

// RouteSecurityConfig maps named HTTP routes to their required security level
var RouteSecurityConfig = map[string]SecurityLevel{
	// Auth - Public
	"auth.register": SecurityPublic,
	"auth.login":    SecurityPublic,
	"health":        SecurityPublic,
	"metrics":       SecurityPublic,

	// Users
	"auth.me":             SecurityUser,
	"auth.validate_token": SecurityUser,
	"auth.register_admin": SecurityAdmin,
	"users.list":          SecurityAdmin,

	// Items - browsing the catalogue needs no account
	"items.list":   SecurityPublic,
	"items.get":    SecurityPublic,
	"items.create": SecurityAdmin,
	"items.update": SecurityAdmin,
	"items.delete": SecurityAdmin,
	"items.stats":  SecurityAdmin,

	// Borrows - any authenticated user
	"borrows.create": SecurityUser,
	"borrows.mine":   SecurityUser,
	"borrows.get":    SecurityUser,

	// Borrows - admin only
	"borrows.list":   SecurityAdmin,
	"borrows.stats":  SecurityAdmin,
	"borrows.update": SecurityAdmin,

	// Export
	"export.items":   SecurityAdmin,
	"export.borrows": SecurityAdmin,
}

// GetSecurityLevel returns the security level for a route name.
// Unknown routes default to SecurityAdmin.
func GetSecurityLevel(route string) SecurityLevel {
	if level, ok := RouteSecurityConfig[route]; ok {
		return level
	}
	return SecurityAdmin
}
