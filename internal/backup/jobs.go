package backup

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/oslokommune/okdata-permission-api/internal/grantee"
	"github.com/oslokommune/okdata-permission-api/internal/keycloak"
	"github.com/oslokommune/okdata-permission-api/internal/resourceserver"
	"github.com/oslokommune/okdata-permission-api/internal/scope"
	"github.com/oslokommune/okdata-permission-api/internal/teams"
)

// Messages sent by CheckUsers.
const (
	MessageNoBackup     = "No permissions backup found while checking for deleted Keycloak users."
	MessageDeletedUsers = "%d Keycloak user(s) holding resource permissions identified as deleted. " +
		"This causes an error while listing permissions and must be fixed manually by re-creating " +
		"permissions for affected permissions using scripts available in the `okdata-permission-api` repo."
)

// PermissionLister lists permissions.
type PermissionLister interface {
	ListPermissions(ctx context.Context, opts resourceserver.ListOptions) ([]keycloak.Permission, error)
}

// Restorer recreates resources and permissions.
type Restorer interface {
	DeleteResource(ctx context.Context, name string) error
	CreateResource(ctx context.Context, name string, owner *grantee.Grantee) (*resourceserver.CreatedResource, error)
	CreatePermission(
		ctx context.Context, resourceID, resourceName, sc string, grantees []grantee.Grantee,
	) (*keycloak.Permission, error)
}

// PermissionUpdater lists and updates permissions.
type PermissionUpdater interface {
	PermissionLister
	UpdatePermission(ctx context.Context, resourceName, sc string, add, remove []grantee.Grantee) (*keycloak.Permission, error)
}

// UserLookup finds users by username.
type UserLookup interface {
	GetUser(ctx context.Context, username string) (keycloak.User, error)
}

// Backup writes a snapshot of every permission. Nothing is written when there are none;
// the returned key is empty then.
func Backup(ctx context.Context, rs PermissionLister, store *Store) (string, error) {
	perms, err := rs.ListPermissions(ctx, resourceserver.ListOptions{})
	if err != nil {
		return "", err //nolint:wrapcheck
	}

	log.Info().Int("permissions", len(perms)).Msg("listed permissions for backup")

	if len(perms) == 0 {
		return "", nil
	}

	return store.Write(ctx, perms)
}

// RestoreOptions controls Restore.
type RestoreOptions struct {
	// SkipDeletedResources skips resources that no longer exist instead of recreating them.
	SkipDeletedResources bool
	// Apply performs the changes. Without it Restore only logs what it would do.
	Apply bool
}

// Restore deletes and recreates every resource found in perms, then recreates each
// of its backed up permissions with the backed up grantees.
func Restore(ctx context.Context, rs Restorer, perms []keycloak.Permission, opts RestoreOptions) error {
	resources, order := groupByResource(perms)

	log.Info().Int("resources", len(order)).Bool("dry_run", !opts.Apply).Msg("restoring backed up permissions")

	for _, resourceName := range order {
		scopes := resources[resourceName]

		log.Info().Str("resource", resourceName).Msg("re-creating resource")

		var resourceID string

		if opts.Apply {
			err := rs.DeleteResource(ctx, resourceName)

			switch {
			case errors.Is(err, resourceserver.ErrResourceNotFound) && opts.SkipDeletedResources:
				log.Warn().Str("resource", resourceName).Msg("skipped previously deleted resource")
				continue
			case err != nil && !errors.Is(err, resourceserver.ErrResourceNotFound):
				return err //nolint:wrapcheck
			}

			created, err := rs.CreateResource(ctx, resourceName, nil)
			if err != nil {
				return err //nolint:wrapcheck
			}

			resourceID = created.Resource.ID
		}

		for _, sc := range slices.Sorted(maps.Keys(scopes)) {
			grantees := scopes[sc]

			log.Info().
				Str("permission", scope.PermissionName(resourceName, sc)).
				Stringers("grantees", stringers(grantees)).
				Msg("re-creating permission")

			if !opts.Apply {
				continue
			}

			if _, err := rs.CreatePermission(ctx, resourceID, resourceName, sc, grantees); err != nil {
				return err //nolint:wrapcheck
			}
		}
	}

	return nil
}

// Grantees returns every grantee of p. Group paths of teams become team names.
func Grantees(p keycloak.Permission) []grantee.Grantee {
	return grantee.FromSets(p.Users, p.Groups, p.Clients)
}

func groupByResource(perms []keycloak.Permission) (map[string]map[string][]grantee.Grantee, []string) {
	resources := map[string]map[string][]grantee.Grantee{}

	var order []string

	for _, p := range perms {
		if len(p.Scopes) == 0 {
			log.Warn().Str("permission", p.Name).Msg("skipped permission without scope")
			continue
		}

		resourceName := scope.ResourceNameFromPermissionName(p.Name)

		if _, ok := resources[resourceName]; !ok {
			resources[resourceName] = map[string][]grantee.Grantee{}
			order = append(order, resourceName)
		}

		resources[resourceName][p.Scopes[0]] = Grantees(p)
	}

	return resources, order
}

// ReplaceGrantee replaces old with replacement in every permission holding old.
// A grantee list left empty is dropped. Permissions without old are returned
// unchanged when includeUnchanged is set and left out otherwise. perms is not modified.
func ReplaceGrantee(perms []keycloak.Permission, old, replacement grantee.Grantee, includeUnchanged bool) []keycloak.Permission {
	out := make([]keycloak.Permission, 0, len(perms))

	for _, p := range perms {
		sets := grantee.NewSets(p.Users, p.Groups, p.Clients)

		if !sets.Contains(old) {
			if includeUnchanged {
				out = append(out, p)
			}

			continue
		}

		p.Users = slices.Clone(p.Users)
		p.Groups = slices.Clone(p.Groups)
		p.Clients = slices.Clone(p.Clients)

		removeGrantee(&p, old)
		addGrantee(&p, replacement)

		log.Info().Str("old", old.String()).Str("new", replacement.String()).Str("permission", p.Name).Msg("replaced grantee")

		out = append(out, p)
	}

	return out
}

func granteeList(p *keycloak.Permission, g grantee.Grantee) (*[]string, string) {
	switch g.Kind {
	case grantee.KindTeam:
		return &p.Groups, grantee.TeamNameToGroupPath(g.ID)
	case grantee.KindClient:
		return &p.Clients, g.ID
	default:
		return &p.Users, g.ID
	}
}

func removeGrantee(p *keycloak.Permission, g grantee.Grantee) {
	list, id := granteeList(p, g)

	*list = slices.DeleteFunc(*list, func(s string) bool { return s == id })
	if len(*list) == 0 {
		*list = nil
	}
}

func addGrantee(p *keycloak.Permission, g grantee.Grantee) {
	list, id := granteeList(p, g)

	if !slices.Contains(*list, id) {
		*list = append(*list, id)
	}
}

// CheckUsers reports users holding permissions in the latest snapshot that no longer
// exist in Keycloak, and notifies Slack about them. A missing snapshot is notified too.
// Notification failures are logged; the result is returned regardless.
func CheckUsers(
	ctx context.Context, store *Store, users UserLookup, notifier Notifier, maxAge time.Duration,
) ([]string, error) {
	perms, _, err := store.LoadLatest(ctx, maxAge)
	if errors.Is(err, ErrNoBackup) {
		notify(ctx, notifier, MessageNoBackup)

		return nil, nil
	}

	if err != nil {
		return nil, err
	}

	seen := map[string]struct{}{}

	for _, p := range perms {
		for _, u := range p.Users {
			seen[u] = struct{}{}
		}
	}

	usernames := slices.Sorted(maps.Keys(seen))

	log.Info().Int("permissions", len(perms)).Int("users", len(usernames)).Msg("checking permission users")

	var missing []string

	for i, username := range usernames {
		log.Debug().Msgf("fetching user %d/%d", i+1, len(usernames))

		_, err := users.GetUser(ctx, username)

		switch {
		case errors.Is(err, teams.ErrUserNotFound):
			missing = append(missing, username)
		case err != nil:
			return nil, err //nolint:wrapcheck
		}
	}

	if len(missing) == 0 {
		return nil, nil
	}

	log.Warn().Strs("usernames", missing).Msg("permission users deleted from keycloak")

	notify(ctx, notifier, fmt.Sprintf(MessageDeletedUsers, len(missing)))

	return missing, nil
}

// notify logs a failed notification instead of failing the check that sent it.
func notify(ctx context.Context, notifier Notifier, message string) {
	if err := notifier.Notify(ctx, message); err != nil {
		log.Error().Err(err).Str("message", message).Msg("failed to send notification")
	}
}

// Stripped is one permission StripGrantee removed a grantee from.
type Stripped struct {
	ResourceName string
	Scope        string
	Skipped      bool
}

// StripGrantee removes g from every permission it holds. Without apply nothing is
// changed. Permissions where g is the only admin are skipped and reported.
func StripGrantee(ctx context.Context, rs PermissionUpdater, g grantee.Grantee, apply bool) ([]Stripped, error) {
	opts := resourceserver.ListOptions{}

	switch g.Kind {
	case grantee.KindTeam:
		opts.TeamID = g.ID
	case grantee.KindClient:
		opts.ClientID = g.ID
	default:
		opts.UserID = g.ID
	}

	perms, err := rs.ListPermissions(ctx, opts)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}

	out := make([]Stripped, 0, len(perms))

	for _, p := range resourceserver.NewOkdataPermissions(perms) {
		stripped := Stripped{ResourceName: p.ResourceName, Scope: p.Scope}

		if apply {
			_, err = rs.UpdatePermission(ctx, p.ResourceName, p.Scope, nil, []grantee.Grantee{g})

			switch {
			case errors.Is(err, resourceserver.ErrCannotRemoveOnlyAdmin):
				log.Warn().Str("grantee", g.String()).Str("resource", p.ResourceName).Msg("grantee is the only admin, skipped")

				stripped.Skipped = true
				out = append(out, stripped)

				continue
			case err != nil:
				return out, err //nolint:wrapcheck
			}
		}

		log.Info().
			Bool("dry_run", !apply).
			Str("grantee", g.String()).
			Str("scope", p.Scope).
			Str("resource", p.ResourceName).
			Msg("removed grantee from permission")

		out = append(out, stripped)
	}

	return out, nil
}

func stringers(grantees []grantee.Grantee) []fmt.Stringer {
	out := make([]fmt.Stringer, len(grantees))
	for i, g := range grantees {
		out[i] = g
	}

	return out
}
