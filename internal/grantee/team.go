package grantee

import "strings"

// TeamGroupPrefix marks a Keycloak group as a team.
const TeamGroupPrefix = "TEAM-"

// TeamNameToGroupName returns the Keycloak group name of a team.
func TeamNameToGroupName(name string) string {
	return TeamGroupPrefix + name
}

// TeamNameToGroupPath returns the Keycloak group path of a team, as stored in a permission.
func TeamNameToGroupPath(name string) string {
	return "/" + TeamNameToGroupName(name)
}

// GroupPathToTeamName is the inverse of TeamNameToGroupPath.
// It also accepts group names without the leading slash.
func GroupPathToTeamName(path string) string {
	return strings.TrimPrefix(strings.TrimPrefix(path, "/"), TeamGroupPrefix)
}

// IsTeamGroup reports whether a group name carries the team prefix.
// Paths must have their leading slash stripped first.
func IsTeamGroup(groupName string) bool {
	return strings.HasPrefix(groupName, TeamGroupPrefix)
}
