package persist

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inamate/sketchboard/internal/db"
	"github.com/inamate/sketchboard/internal/element"
	"github.com/inamate/sketchboard/internal/typeid"
)

type storeFactory func(t *testing.T) (Storer, error)

func memStoreFactory(t *testing.T) (Storer, error) {
	return NewMemStore(), nil
}

func boltStoreFactory(t *testing.T) (Storer, error) {
	return OpenBolt(filepath.Join(t.TempDir(), "sketchboard.db"))
}

func postgresStoreFactory(t *testing.T) (Storer, error) {
	url := os.Getenv("SKETCHBOARD_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("SKETCHBOARD_TEST_DATABASE_URL not set")
	}
	pool, err := db.NewPool(context.Background(), url)
	if err != nil {
		return nil, err
	}
	t.Cleanup(pool.Close)
	return NewPostgresStore(context.Background(), pool)
}

func runTestsForAllStores(t *testing.T, testName string, testFn func(t *testing.T, store Storer)) {
	factories := map[string]storeFactory{
		"MemStore":      memStoreFactory,
		"BoltStore":     boltStoreFactory,
		"PostgresStore": postgresStoreFactory,
	}
	for name, factory := range factories {
		t.Run(name+"/"+testName, func(t *testing.T) {
			store, err := factory(t)
			require.NoError(t, err, "Failed to create store")
			defer store.Close()
			testFn(t, store)
		})
	}
}

func sampleElements() []element.Element {
	a := element.New(element.TypeRectangle, 0, 0, 100, 50)
	a.ID = "a"
	a.Version = 3
	a.VersionNonce = 77
	a.ContainerID = element.Ptr("frame")

	b := element.New(element.TypeArrow, 10, 10, 40, 0)
	b.ID = "b"
	b.Points = []element.Point{{X: 0, Y: 0}, {X: 40, Y: 0}}
	b.IsDeleted = true
	return []element.Element{a, b}
}

func TestSceneRoundTrip(t *testing.T) {
	runTestsForAllStores(t, "SceneRoundTrip", func(t *testing.T, store Storer) {
		ctx := context.Background()
		sceneID := typeid.NewSceneID()

		_, err := store.LoadScene(ctx, sceneID)
		assert.ErrorIs(t, err, ErrNotFound)

		want := sampleElements()
		v, err := store.SaveScene(ctx, sceneID, want)
		require.NoError(t, err)
		assert.Equal(t, int64(1), v)

		got, err := store.LoadScene(ctx, sceneID)
		require.NoError(t, err)
		if diff := cmp.Diff(want, got, cmpopts.EquateEmpty()); diff != "" {
			t.Errorf("loaded scene mismatch (-want +got):\n%s", diff)
		}
		assert.True(t, got[1].IsDeleted, "tombstones are persisted")
	})
}

func TestSceneSaveAdvancesVersion(t *testing.T) {
	runTestsForAllStores(t, "SceneSaveAdvancesVersion", func(t *testing.T, store Storer) {
		ctx := context.Background()
		sceneID := typeid.NewSceneID()

		_, err := store.SaveScene(ctx, sceneID, sampleElements())
		require.NoError(t, err)
		v, err := store.SaveScene(ctx, sceneID, sampleElements()[:1])
		require.NoError(t, err)
		assert.Equal(t, int64(2), v)

		got, err := store.LoadScene(ctx, sceneID)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "a", got[0].ID)

		v, err = store.SaveScene(ctx, typeid.NewSceneID(), nil)
		require.NoError(t, err)
		assert.Equal(t, int64(1), v, "versions are per scene")
	})
}

func TestSavedSceneIsCopied(t *testing.T) {
	runTestsForAllStores(t, "SavedSceneIsCopied", func(t *testing.T, store Storer) {
		ctx := context.Background()
		sceneID := typeid.NewSceneID()

		els := sampleElements()
		_, err := store.SaveScene(ctx, sceneID, els)
		require.NoError(t, err)
		els[0].Points = append(els[0].Points, element.Point{X: 1, Y: 1})
		els[0].X = 999

		got, err := store.LoadScene(ctx, sceneID)
		require.NoError(t, err)
		assert.Equal(t, 0.0, got[0].X)
		assert.Empty(t, got[0].Points)
	})
}

func TestUsers(t *testing.T) {
	runTestsForAllStores(t, "Users", func(t *testing.T, store Storer) {
		ctx := context.Background()
		u := User{
			ID:           typeid.NewUserID(),
			Email:        typeid.NewClientID() + "@example.com",
			PasswordHash: "hash",
			DisplayName:  "Ada",
		}
		require.NoError(t, store.CreateUser(ctx, u))

		byID, err := store.GetUserByID(ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, u.Email, byID.Email)
		assert.Equal(t, "hash", byID.PasswordHash)

		byEmail, err := store.GetUserByEmail(ctx, u.Email)
		require.NoError(t, err)
		assert.Equal(t, u.ID, byEmail.ID)

		dup := u
		dup.ID = typeid.NewUserID()
		assert.ErrorIs(t, store.CreateUser(ctx, dup), ErrConflict)

		_, err = store.GetUserByID(ctx, "user_missing")
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = store.GetUserByEmail(ctx, "nobody@example.com")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestBoltStoreSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reopen.db")
	ctx := context.Background()

	store, err := OpenBolt(path)
	require.NoError(t, err)
	_, err = store.SaveScene(ctx, "scene", sampleElements())
	require.NoError(t, err)
	require.NoError(t, store.Close())

	store, err = OpenBolt(path)
	require.NoError(t, err)
	defer store.Close()

	got, err := store.LoadScene(ctx, "scene")
	require.NoError(t, err)
	assert.Len(t, got, 2)
}
