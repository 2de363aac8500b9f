package grantee

import (
	"slices"
)

// Sets holds the grantees of a single permission the way Keycloak stores them:
// usernames, group paths and client ids.
type Sets struct {
	Users   map[string]struct{}
	Groups  map[string]struct{}
	Clients map[string]struct{}
}

// NewSets builds Sets from Keycloak's lists. Groups must already be group paths.
func NewSets(users, groups, clients []string) Sets {
	return Sets{
		Users:   toSet(users),
		Groups:  toSet(groups),
		Clients: toSet(clients),
	}
}

// Add inserts g. Teams are stored as group paths.
func (s *Sets) Add(g Grantee) {
	s.init()

	switch g.Kind {
	case KindUser:
		s.Users[g.ID] = struct{}{}
	case KindTeam:
		s.Groups[TeamNameToGroupPath(g.ID)] = struct{}{}
	case KindClient:
		s.Clients[g.ID] = struct{}{}
	default:
		panic("grantee: unhandled kind " + string(g.Kind))
	}
}

// Remove deletes g, using the same normalized form as Add.
func (s *Sets) Remove(g Grantee) {
	s.init()

	switch g.Kind {
	case KindUser:
		delete(s.Users, g.ID)
	case KindTeam:
		delete(s.Groups, TeamNameToGroupPath(g.ID))
	case KindClient:
		delete(s.Clients, g.ID)
	default:
		panic("grantee: unhandled kind " + string(g.Kind))
	}
}

// Contains reports whether g is a member.
func (s Sets) Contains(g Grantee) bool {
	var ok bool

	switch g.Kind {
	case KindUser:
		_, ok = s.Users[g.ID]
	case KindTeam:
		_, ok = s.Groups[TeamNameToGroupPath(g.ID)]
	case KindClient:
		_, ok = s.Clients[g.ID]
	}

	return ok
}

// Empty reports whether all three sets are empty.
func (s Sets) Empty() bool {
	return len(s.Users) == 0 && len(s.Groups) == 0 && len(s.Clients) == 0
}

// Slices returns the sorted members of each set.
func (s Sets) Slices() (users, groups, clients []string) {
	return sorted(s.Users), sorted(s.Groups), sorted(s.Clients)
}

// Grantees returns every member as a Grantee, teams with their bare name.
func (s Sets) Grantees() []Grantee {
	return FromSets(s.Slices())
}

// FromSets converts Keycloak's grantee lists into Grantees. Group paths become bare team names.
func FromSets(users, groups, clients []string) []Grantee {
	out := make([]Grantee, 0, len(users)+len(groups)+len(clients))

	for _, u := range users {
		out = append(out, User(u))
	}

	for _, g := range groups {
		out = append(out, Team(GroupPathToTeamName(g)))
	}

	for _, c := range clients {
		out = append(out, Client(c))
	}

	return out
}

func (s *Sets) init() {
	if s.Users == nil {
		s.Users = map[string]struct{}{}
	}

	if s.Groups == nil {
		s.Groups = map[string]struct{}{}
	}

	if s.Clients == nil {
		s.Clients = map[string]struct{}{}
	}
}

func toSet(values []string) map[string]struct{} {
	out := make(map[string]struct{}, len(values))
	for _, v := range values {
		out[v] = struct{}{}
	}

	return out
}

func sorted(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}

	slices.Sort(out)

	return out
}
