package backup_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oslokommune/okdata-permission-api/internal/backup"
	"github.com/oslokommune/okdata-permission-api/internal/grantee"
	"github.com/oslokommune/okdata-permission-api/internal/keycloak"
	"github.com/oslokommune/okdata-permission-api/internal/keycloak/keycloaktest"
	"github.com/oslokommune/okdata-permission-api/internal/resourceserver"
	"github.com/oslokommune/okdata-permission-api/internal/teams"
)

const (
	dataset    = "okdata:dataset:foo"
	readScope  = "okdata:dataset:read"
	adminScope = "okdata:dataset:admin"
)

func newResourceServer(t *testing.T) (*keycloaktest.Server, *resourceserver.ResourceServer) {
	t.Helper()

	kc := keycloaktest.New(t)

	rs, err := resourceserver.New(context.Background(), resourceserver.Options{
		ServerURL:    kc.URL,
		Realm:        keycloaktest.Realm,
		ClientID:     keycloaktest.ClientID,
		ClientSecret: keycloaktest.ClientSecret,
	})
	require.NoError(t, err)

	return kc, rs
}

type recordingNotifier struct {
	messages []string
	err      error
}

func (n *recordingNotifier) Notify(_ context.Context, message string) error {
	n.messages = append(n.messages, message)
	return n.err
}

type userDirectory map[string]bool

func (d userDirectory) GetUser(_ context.Context, username string) (keycloak.User, error) {
	if !d[username] {
		return keycloak.User{}, &teams.UserNotFoundError{Username: username}
	}

	return keycloak.User{Username: username}, nil
}

func permission(resourceName, sc string, users, groups, clients []string) keycloak.Permission {
	return keycloak.Permission{
		Name:    resourceName + ":" + sc[len("okdata:dataset:"):],
		Scopes:  []string{sc},
		Users:   users,
		Groups:  groups,
		Clients: clients,
	}
}

func TestBackup(t *testing.T) {
	_, rs := newResourceServer(t)
	ctx := context.Background()

	api := newMemS3()
	store, err := backup.NewStore(api, "bucket", "permissions", fixedClock(now))
	require.NoError(t, err)

	key, err := backup.Backup(ctx, rs, store)
	require.NoError(t, err)
	assert.Empty(t, key, "nothing written without permissions")
	assert.Empty(t, api.objects)

	owner := grantee.User("janedoe")
	_, err = rs.CreateResource(ctx, dataset, &owner)
	require.NoError(t, err)

	key, err = backup.Backup(ctx, rs, store)
	require.NoError(t, err)
	assert.Equal(t, backup.ObjectKey("permissions", now), key)

	perms, err := store.Read(ctx, key)
	require.NoError(t, err)
	assert.Len(t, perms, 4)
}

func TestRestore(t *testing.T) {
	kc, rs := newResourceServer(t)
	ctx := context.Background()

	owner := grantee.User("janedoe")
	_, err := rs.CreateResource(ctx, dataset, &owner)
	require.NoError(t, err)

	snapshot := []keycloak.Permission{
		permission(dataset, readScope, []string{"homersimpson"}, []string{"/TEAM-team1"}, nil),
		permission(dataset, adminScope, []string{"janedoe"}, nil, []string{"some-service"}),
		permission("okdata:dataset:gone", readScope, []string{"misty"}, nil, nil),
	}

	t.Run("dry run changes nothing", func(t *testing.T) {
		before := kc.Permissions()

		require.NoError(t, backup.Restore(ctx, rs, snapshot, backup.RestoreOptions{}))
		assert.Equal(t, before, kc.Permissions())
	})

	t.Run("skip deleted resources", func(t *testing.T) {
		require.NoError(t, backup.Restore(ctx, rs, snapshot, backup.RestoreOptions{Apply: true, SkipDeletedResources: true}))

		perms := kc.Permissions()
		require.Len(t, perms, 2)

		byName := map[string]keycloak.Permission{}
		for _, p := range perms {
			byName[p.Name] = p
		}

		read := byName[dataset+":read"]
		assert.Equal(t, []string{"homersimpson"}, read.Users)
		assert.Equal(t, []string{"/TEAM-team1"}, read.Groups)

		admin := byName[dataset+":admin"]
		assert.Equal(t, []string{"janedoe"}, admin.Users)
		assert.Equal(t, []string{"some-service"}, admin.Clients)

		assert.Len(t, kc.Resources(), 1)
	})

	t.Run("recreates deleted resources", func(t *testing.T) {
		require.NoError(t, backup.Restore(ctx, rs, snapshot, backup.RestoreOptions{Apply: true}))

		assert.Len(t, kc.Permissions(), 3)
		assert.Len(t, kc.Resources(), 2)
	})
}

func TestGrantees(t *testing.T) {
	p := permission(dataset, readScope, []string{"janedoe"}, []string{"/TEAM-team1"}, []string{"some-service"})

	assert.Equal(t, []grantee.Grantee{
		grantee.User("janedoe"),
		grantee.Team("team1"),
		grantee.Client("some-service"),
	}, backup.Grantees(p))
}

func TestReplaceGrantee(t *testing.T) {
	perms := []keycloak.Permission{
		permission(dataset, readScope, []string{"janedoe", "misty"}, nil, nil),
		permission(dataset, adminScope, []string{"janedoe"}, []string{"/TEAM-team2"}, nil),
		permission(dataset, "okdata:dataset:write", []string{"misty"}, nil, nil),
	}

	tests := []struct {
		name             string
		old, replacement grantee.Grantee
		includeUnchanged bool
		want             []keycloak.Permission
	}{
		{
			name:        "user with team, changed only",
			old:         grantee.User("janedoe"),
			replacement: grantee.Team("team2"),
			want: []keycloak.Permission{
				permission(dataset, readScope, []string{"misty"}, []string{"/TEAM-team2"}, nil),
				permission(dataset, adminScope, nil, []string{"/TEAM-team2"}, nil),
			},
		},
		{
			name:             "team with user, include unchanged",
			old:              grantee.Team("team2"),
			replacement:      grantee.User("homersimpson"),
			includeUnchanged: true,
			want: []keycloak.Permission{
				perms[0],
				permission(dataset, adminScope, []string{"janedoe", "homersimpson"}, nil, nil),
				perms[2],
			},
		},
		{
			name:        "nothing to replace",
			old:         grantee.Client("nope"),
			replacement: grantee.User("homersimpson"),
			want:        []keycloak.Permission{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := backup.ReplaceGrantee(perms, tt.old, tt.replacement, tt.includeUnchanged)
			assert.Equal(t, tt.want, got)
		})
	}

	// input untouched
	assert.Equal(t, []string{"janedoe", "misty"}, perms[0].Users)
	assert.Equal(t, []string{"/TEAM-team2"}, perms[1].Groups)
}

func TestCheckUsers(t *testing.T) {
	ctx := context.Background()
	maxAge := 12 * 7 * 24 * time.Hour

	t.Run("no backup", func(t *testing.T) {
		store, err := backup.NewStore(newMemS3(), "bucket", "permissions", fixedClock(now))
		require.NoError(t, err)

		notifier := &recordingNotifier{}

		missing, err := backup.CheckUsers(ctx, store, userDirectory{}, notifier, maxAge)
		require.NoError(t, err)
		assert.Empty(t, missing)
		assert.Equal(t, []string{backup.MessageNoBackup}, notifier.messages)
	})

	api := newMemS3()
	api.put(backup.ObjectKey("permissions", now.Add(-time.Hour)), `[
		{"name":"okdata:dataset:foo:read","scopes":["okdata:dataset:read"],"users":["janedoe","deleted1"]},
		{"name":"okdata:dataset:foo:admin","scopes":["okdata:dataset:admin"],"users":["deleted2","janedoe"],"groups":["/TEAM-gone"]}
	]`)

	store, err := backup.NewStore(api, "bucket", "permissions", fixedClock(now))
	require.NoError(t, err)

	t.Run("deleted users", func(t *testing.T) {
		notifier := &recordingNotifier{}

		missing, err := backup.CheckUsers(ctx, store, userDirectory{"janedoe": true}, notifier, maxAge)
		require.NoError(t, err)
		assert.Equal(t, []string{"deleted1", "deleted2"}, missing)
		assert.Equal(t, []string{fmt.Sprintf(backup.MessageDeletedUsers, 2)}, notifier.messages)
	})

	t.Run("all users exist", func(t *testing.T) {
		notifier := &recordingNotifier{}

		missing, err := backup.CheckUsers(ctx, store, userDirectory{"janedoe": true, "deleted1": true, "deleted2": true}, notifier, maxAge)
		require.NoError(t, err)
		assert.Empty(t, missing)
		assert.Empty(t, notifier.messages)
	})

	t.Run("notification error", func(t *testing.T) {
		notifier := &recordingNotifier{err: errors.New("boom")}

		missing, err := backup.CheckUsers(ctx, store, userDirectory{"janedoe": true}, notifier, maxAge)
		require.NoError(t, err)
		assert.Equal(t, []string{"deleted1", "deleted2"}, missing)
		assert.Len(t, notifier.messages, 1)
	})

	t.Run("notification error without backup", func(t *testing.T) {
		empty, err := backup.NewStore(newMemS3(), "bucket", "permissions", fixedClock(now))
		require.NoError(t, err)

		notifier := &recordingNotifier{err: errors.New("boom")}

		missing, err := backup.CheckUsers(ctx, empty, userDirectory{}, notifier, maxAge)
		require.NoError(t, err)
		assert.Empty(t, missing)
		assert.Equal(t, []string{backup.MessageNoBackup}, notifier.messages)
	})
}

func TestCheckUsersWithTeamsClient(t *testing.T) {
	kc := keycloaktest.New(t)
	kc.AddUser(keycloak.User{Username: "janedoe"})

	client, err := teams.New(context.Background(), teams.Options{
		ServerURL: kc.URL,
		Realm:     keycloaktest.Realm,
		Username:  keycloaktest.AdminUser,
		Password:  keycloaktest.AdminPass,
	})
	require.NoError(t, err)

	api := newMemS3()
	api.put(backup.ObjectKey("permissions", now), `[{"name":"okdata:dataset:foo:read","users":["janedoe","ghost"]}]`)

	store, err := backup.NewStore(api, "bucket", "permissions", fixedClock(now))
	require.NoError(t, err)

	missing, err := backup.CheckUsers(context.Background(), store, client, &recordingNotifier{}, 12*7*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, []string{"ghost"}, missing)
}

func TestStripGrantee(t *testing.T) {
	kc, rs := newResourceServer(t)
	ctx := context.Background()

	owner := grantee.User("janedoe")
	_, err := rs.CreateResource(ctx, dataset, &owner)
	require.NoError(t, err)

	team := grantee.Team("team1")
	_, err = rs.UpdatePermission(ctx, dataset, readScope, []grantee.Grantee{team}, nil)
	require.NoError(t, err)
	_, err = rs.UpdatePermission(ctx, dataset, adminScope, []grantee.Grantee{team}, nil)
	require.NoError(t, err)

	t.Run("dry run", func(t *testing.T) {
		stripped, err := backup.StripGrantee(ctx, rs, team, false)
		require.NoError(t, err)
		assert.Len(t, stripped, 2)

		perms, err := rs.ListPermissions(ctx, resourceserver.ListOptions{TeamID: "team1"})
		require.NoError(t, err)
		assert.Len(t, perms, 2)
	})

	t.Run("apply", func(t *testing.T) {
		stripped, err := backup.StripGrantee(ctx, rs, team, true)
		require.NoError(t, err)
		assert.ElementsMatch(t, []backup.Stripped{
			{ResourceName: dataset, Scope: readScope},
			{ResourceName: dataset, Scope: adminScope},
		}, stripped)

		perms, err := rs.ListPermissions(ctx, resourceserver.ListOptions{TeamID: "team1"})
		require.NoError(t, err)
		assert.Empty(t, perms)
		assert.Len(t, kc.Permissions(), 4)
	})

	t.Run("only admin is skipped", func(t *testing.T) {
		stripped, err := backup.StripGrantee(ctx, rs, owner, true)
		require.NoError(t, err)

		var skipped []string
		for _, s := range stripped {
			if s.Skipped {
				skipped = append(skipped, s.Scope)
			}
		}

		assert.Equal(t, []string{adminScope}, skipped)

		admin, err := rs.GetPermission(ctx, dataset+":admin")
		require.NoError(t, err)
		assert.Equal(t, []string{"janedoe"}, admin.Users)
	})
}

func TestSlackNotify(t *testing.T) {
	var got string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		got = string(body)

		if r.URL.Path == "/fail" {
			w.WriteHeader(http.StatusForbidden)
		}
	}))
	t.Cleanup(srv.Close)

	require.NoError(t, backup.NewSlack(srv.URL, nil).Notify(context.Background(), "hello"))
	assert.JSONEq(t, `{"text":"hello"}`, got)

	err := backup.NewSlack(srv.URL+"/fail", nil).Notify(context.Background(), "hello")
	require.ErrorIs(t, err, backup.ErrSlack)

	require.NoError(t, backup.NewSlack("", nil).Notify(context.Background(), "dropped"))
}
