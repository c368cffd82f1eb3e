package store_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medicamp-api/internal/model"
	"medicamp-api/internal/store"
)

func setup(t *testing.T) *store.Store {
	t.Helper()
	_ = godotenv.Load("../../.env")
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set")
	}
	pool, err := pgxpool.New(context.Background(), dbURL)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	migration, err := os.ReadFile("../../db/migrations/001_init.sql")
	require.NoError(t, err)
	_, err = pool.Exec(context.Background(), string(migration))
	require.NoError(t, err)

	return store.New(pool)
}

func newUser(t *testing.T, st *store.Store) store.Caller {
	t.Helper()
	p := &model.Profile{
		ID:    uuid.New().String(),
		Email: fmt.Sprintf("test-%s@test.com", uuid.New().String()[:8]),
		Name:  "Test User",
		Role:  model.RoleUser,
	}
	require.NoError(t, st.CreateUser(context.Background(), p, ""))
	return store.CallerFor(p)
}

func TestUpsertProfileIdempotent(t *testing.T) {
	st := setup(t)
	ctx := context.Background()

	c := store.Caller{ID: uuid.New().String(), Email: fmt.Sprintf("up-%s@test.com", uuid.New().String()[:8])}
	p := &model.Profile{ID: c.ID, Email: c.Email, Role: model.RoleUser}

	first, err := st.UpsertProfile(ctx, c, p)
	require.NoError(t, err)
	assert.Equal(t, model.RoleUser, first.Role)

	// losing the provisioning race must not fail
	second, err := st.UpsertProfile(ctx, c, p)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.CreatedAt, second.CreatedAt)
}

func TestBackfillRoleOnlyWhenMissing(t *testing.T) {
	st := setup(t)
	ctx := context.Background()

	c := newUser(t, st)
	require.NoError(t, st.BackfillRole(ctx, c, c.ID, model.RoleAdmin))

	p, err := st.ProfileByID(ctx, c, c.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RoleUser, p.Role, "a set role must not be overwritten")
}

func TestSlotIndexArbitratesConflicts(t *testing.T) {
	st := setup(t)
	ctx := context.Background()
	c := newUser(t, st)

	a := &model.Appointment{UserID: c.ID, Date: "2031-03-01", Time: "09:00", Status: model.StatusBooked}
	require.NoError(t, st.CreateAppointment(ctx, c, a))
	assert.NotZero(t, a.ID)

	dup := &model.Appointment{UserID: c.ID, Date: "2031-03-01", Time: "09:00", Status: model.StatusBooked}
	err := st.CreateAppointment(ctx, c, dup)
	require.Error(t, err)
	assert.True(t, store.IsUniqueViolation(err))

	// cancelling frees the slot
	admin := store.Caller{ID: c.ID, Role: model.RoleAdmin}
	_, err = st.UpdateAppointmentStatus(ctx, admin, a.ID, model.StatusCancelled)
	require.NoError(t, err)
	require.NoError(t, st.CreateAppointment(ctx, c, dup))
}

func TestListOrdering(t *testing.T) {
	st := setup(t)
	ctx := context.Background()
	c := newUser(t, st)

	for _, slot := range [][2]string{
		{"2031-03-02", "09:00"},
		{"2031-03-01", "10:00"},
		{"2031-03-01", "09:00"},
	} {
		a := &model.Appointment{UserID: c.ID, Date: slot[0], Time: slot[1], Status: model.StatusBooked}
		require.NoError(t, st.CreateAppointment(ctx, c, a))
	}

	apts, err := st.ListAppointmentsByUser(ctx, c)
	require.NoError(t, err)
	require.Len(t, apts, 3)
	assert.Equal(t, [2]string{"2031-03-01", "09:00"}, [2]string{apts[0].Date, apts[0].Time})
	assert.Equal(t, [2]string{"2031-03-01", "10:00"}, [2]string{apts[1].Date, apts[1].Time})
	assert.Equal(t, [2]string{"2031-03-02", "09:00"}, [2]string{apts[2].Date, apts[2].Time})
}

func TestListAllJoinsOwner(t *testing.T) {
	st := setup(t)
	ctx := context.Background()
	c := newUser(t, st)

	a := &model.Appointment{UserID: c.ID, Date: "2031-04-01", Time: "11:30", Status: model.StatusBooked}
	require.NoError(t, st.CreateAppointment(ctx, c, a))

	admin := store.Caller{ID: uuid.New().String(), Role: model.RoleAdmin}
	apts, err := st.ListAllAppointments(ctx, admin)
	require.NoError(t, err)

	var found bool
	for _, got := range apts {
		if got.ID == a.ID {
			found = true
			assert.Equal(t, "Test User", got.UserName)
			assert.Equal(t, c.Email, got.UserEmail)
		}
	}
	assert.True(t, found)
}

func TestUpdateStatusNotFound(t *testing.T) {
	st := setup(t)
	admin := store.Caller{ID: uuid.New().String(), Role: model.RoleAdmin}
	_, err := st.UpdateAppointmentStatus(context.Background(), admin, -1, model.StatusConfirmed)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRefreshTokenRotation(t *testing.T) {
	st := setup(t)
	ctx := context.Background()
	c := newUser(t, st)

	exp := time.Now().Add(time.Hour)
	oldHash := "hash-" + uuid.New().String()
	oldID, err := st.CreateRefreshToken(ctx, c.ID, oldHash, exp)
	require.NoError(t, err)

	newHash := "hash-" + uuid.New().String()
	newID := uuid.New().String()
	require.NoError(t, st.RotateRefreshToken(ctx, oldID, newID, c.ID, newHash, exp))

	old, err := st.GetRefreshTokenByHash(ctx, oldHash)
	require.NoError(t, err)
	assert.True(t, old.Revoked)
	require.NotNil(t, old.ReplacedBy)
	assert.Equal(t, newID, *old.ReplacedBy)

	fresh, err := st.GetRefreshTokenByHash(ctx, newHash)
	require.NoError(t, err)
	assert.False(t, fresh.Revoked)

	require.NoError(t, st.RevokeAllRefreshTokens(ctx, c.ID))
	fresh, err = st.GetRefreshTokenByHash(ctx, newHash)
	require.NoError(t, err)
	assert.True(t, fresh.Revoked)
}
