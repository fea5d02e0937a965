package store

import (
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/subgate/subgate/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestStore(t *testing.T) (*Store, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Subscription{}, &models.Invite{}))
	return New(db), db
}

func TestEnsureUserCreatesOnce(t *testing.T) {
	st, db := newTestStore(t)

	user, err := st.EnsureUser(42, "Alice")
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, user.ID, "id is assigned app-side, not by the database")
	assert.Equal(t, int64(42), user.PrincipalID)
	assert.Equal(t, "Alice", user.DisplayName)

	again, err := st.EnsureUser(42, "Alice A.")
	require.NoError(t, err)
	assert.Equal(t, user.ID, again.ID)
	assert.Equal(t, "Alice A.", again.DisplayName)

	var count int64
	require.NoError(t, db.Model(&models.User{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestUserByPrincipalUnknown(t *testing.T) {
	st, _ := newTestStore(t)

	user, err := st.UserByPrincipal(99)
	require.NoError(t, err)
	assert.Nil(t, user)
}

func TestActiveSubscriptionSelection(t *testing.T) {
	st, _ := newTestStore(t)
	now := time.Now().UTC()

	user, err := st.EnsureUser(1, "A")
	require.NoError(t, err)

	sub, err := st.ActiveSubscription(user.ID, now)
	require.NoError(t, err)
	assert.Nil(t, sub)

	// An expired row and an active-but-overdue row must both be skipped.
	require.NoError(t, st.CreateSubscription(&models.Subscription{
		ID: uuid.New(), UserID: user.ID, Status: models.SubscriptionExpired,
		StartAt: now.Add(-48 * time.Hour), EndAt: now.Add(-24 * time.Hour),
	}))
	require.NoError(t, st.CreateSubscription(&models.Subscription{
		ID: uuid.New(), UserID: user.ID, Status: models.SubscriptionActive,
		StartAt: now.Add(-24 * time.Hour), EndAt: now.Add(-time.Minute),
	}))

	sub, err = st.ActiveSubscription(user.ID, now)
	require.NoError(t, err)
	assert.Nil(t, sub)

	current := models.Subscription{
		ID: uuid.New(), UserID: user.ID, Status: models.SubscriptionActive,
		StartAt: now, EndAt: now.Add(24 * time.Hour),
	}
	require.NoError(t, st.CreateSubscription(&current))

	sub, err = st.ActiveSubscription(user.ID, now)
	require.NoError(t, err)
	require.NotNil(t, sub)
	assert.Equal(t, current.ID, sub.ID)
}

func TestExpireSubscriptionIdempotent(t *testing.T) {
	st, _ := newTestStore(t)
	now := time.Now().UTC()

	user, err := st.EnsureUser(1, "A")
	require.NoError(t, err)

	sub := models.Subscription{
		ID: uuid.New(), UserID: user.ID, Status: models.SubscriptionActive,
		StartAt: now.Add(-24 * time.Hour), EndAt: now.Add(-time.Minute),
	}
	require.NoError(t, st.CreateSubscription(&sub))

	expired, err := st.ExpireSubscription(sub.ID)
	require.NoError(t, err)
	assert.True(t, expired)

	// Second transition is a no-op, not an error.
	expired, err = st.ExpireSubscription(sub.ID)
	require.NoError(t, err)
	assert.False(t, expired)
}

func TestOverdueSubscriptionsPreloadsUser(t *testing.T) {
	st, _ := newTestStore(t)
	now := time.Now().UTC()

	user, err := st.EnsureUser(7, "B")
	require.NoError(t, err)

	require.NoError(t, st.CreateSubscription(&models.Subscription{
		ID: uuid.New(), UserID: user.ID, Status: models.SubscriptionActive,
		StartAt: now.Add(-48 * time.Hour), EndAt: now.Add(-time.Hour),
	}))
	require.NoError(t, st.CreateSubscription(&models.Subscription{
		ID: uuid.New(), UserID: user.ID, Status: models.SubscriptionActive,
		StartAt: now, EndAt: now.Add(time.Hour),
	}))

	subs, err := st.OverdueSubscriptions(now)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, int64(7), subs[0].User.PrincipalID)
}

func TestPendingInviteFiltersUsedAndExpired(t *testing.T) {
	st, _ := newTestStore(t)
	now := time.Now().UTC()

	user, err := st.EnsureUser(1, "A")
	require.NoError(t, err)

	require.NoError(t, st.CreateInvite(&models.Invite{
		ID: uuid.New(), UserID: user.ID, Link: "t.me/+expired",
		ExpiresAt: now.Add(-time.Minute),
	}))
	usedBy := int64(1)
	require.NoError(t, st.CreateInvite(&models.Invite{
		ID: uuid.New(), UserID: user.ID, Link: "t.me/+used",
		ExpiresAt: now.Add(time.Hour), Used: true, UsedBy: &usedBy,
	}))

	inv, err := st.PendingInvite(user.ID, now)
	require.NoError(t, err)
	assert.Nil(t, inv)

	fresh := models.Invite{
		ID: uuid.New(), UserID: user.ID, Link: "t.me/+fresh",
		ExpiresAt: now.Add(time.Hour),
	}
	require.NoError(t, st.CreateInvite(&fresh))

	inv, err = st.PendingInvite(user.ID, now)
	require.NoError(t, err)
	require.NotNil(t, inv)
	assert.Equal(t, fresh.ID, inv.ID)
}

func TestRedeemInviteExactlyOnce(t *testing.T) {
	st, db := newTestStore(t)
	now := time.Now().UTC()

	user, err := st.EnsureUser(1, "A")
	require.NoError(t, err)

	inv := models.Invite{
		ID: uuid.New(), UserID: user.ID, Link: "t.me/+abc",
		ExpiresAt: now.Add(time.Hour),
	}
	require.NoError(t, st.CreateInvite(&inv))

	redeemed, err := st.RedeemInvite(inv.ID, 1)
	require.NoError(t, err)
	assert.True(t, redeemed)

	redeemed, err = st.RedeemInvite(inv.ID, 2)
	require.NoError(t, err)
	assert.False(t, redeemed)

	var stored models.Invite
	require.NoError(t, db.First(&stored, "id = ?", inv.ID).Error)
	assert.True(t, stored.Used)
	require.NotNil(t, stored.UsedBy)
	assert.EqualValues(t, 1, *stored.UsedBy)
}

func TestPendingInviteByLink(t *testing.T) {
	st, _ := newTestStore(t)
	now := time.Now().UTC()

	user, err := st.EnsureUser(5, "Owner")
	require.NoError(t, err)

	inv := models.Invite{
		ID: uuid.New(), UserID: user.ID, Link: "t.me/+owned",
		ExpiresAt: now.Add(time.Hour),
	}
	require.NoError(t, st.CreateInvite(&inv))

	found, err := st.PendingInviteByLink("t.me/+owned", now)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, int64(5), found.User.PrincipalID)

	found, err = st.PendingInviteByLink("t.me/+unknown", now)
	require.NoError(t, err)
	assert.Nil(t, found)

	_, err = st.RedeemInvite(inv.ID, 5)
	require.NoError(t, err)

	found, err = st.PendingInviteByLink("t.me/+owned", now)
	require.NoError(t, err)
	assert.Nil(t, found)
}
