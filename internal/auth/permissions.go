package auth

// Capabilities of the admin API. A capability is "<resource>.<verb>", a granted
// "read" or "write" covers that verb on every resource.
const (
	// PermFlowsRead allows reading the deployed flows.
	PermFlowsRead = "flows.read"
	// PermFlowsWrite allows deploying flows.
	PermFlowsWrite = "flows.write"

	// PermNodesRead allows listing installed node modules.
	PermNodesRead = "nodes.read"
	// PermNodesWrite allows installing, enabling and removing node modules.
	PermNodesWrite = "nodes.write"

	PermSettingsRead  = "settings.read"
	PermSettingsWrite = "settings.write"

	PermLibraryRead  = "library.read"
	PermLibraryWrite = "library.write"

	PermContextRead  = "context.read"
	PermContextWrite = "context.write"

	// PermUsersWrite allows managing directory users and revoking their sessions.
	PermUsersWrite = "users.write"
)
