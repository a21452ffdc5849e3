package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/lently/lently_go_server/internal/repository"
	"github.com/lently/lently_go_server/internal/testutil"
)

func setupQuotaService(t *testing.T) (*QuotaService, *gorm.DB, func()) {
	t.Helper()

	db := testutil.SetupTestDB(t)
	userRepo := repository.NewUserRepository(db)
	service := NewQuotaService(userRepo, testConfig())

	cleanup := func() {
		testutil.CleanupTestDB(t, db)
	}

	return service, db, cleanup
}

func TestQuotaService_CheckQuota_HasQuota(t *testing.T) {
	service, db, cleanup := setupQuotaService(t)
	defer cleanup()

	user := testutil.TestUser(t, db, testutil.WithVideosUsed(2))

	hasQuota, err := service.CheckQuota(user.ID)
	require.NoError(t, err)
	assert.True(t, hasQuota)
}

func TestQuotaService_CheckQuota_Exhausted(t *testing.T) {
	service, db, cleanup := setupQuotaService(t)
	defer cleanup()

	// free 套餐每月 3 个视频
	user := testutil.TestUser(t, db, testutil.WithVideosUsed(3))

	hasQuota, err := service.CheckQuota(user.ID)
	require.NoError(t, err)
	assert.False(t, hasQuota)
}

func TestQuotaService_CheckQuota_HigherPlan(t *testing.T) {
	service, db, cleanup := setupQuotaService(t)
	defer cleanup()

	user := testutil.TestUser(t, db, testutil.WithPlan("pro"), testutil.WithVideosUsed(20))

	hasQuota, err := service.CheckQuota(user.ID)
	require.NoError(t, err)
	assert.True(t, hasQuota)
}

func TestQuotaService_CheckQuota_ResetsAfterMonthRollover(t *testing.T) {
	service, db, cleanup := setupQuotaService(t)
	defer cleanup()

	user := testutil.TestUser(t, db, testutil.WithVideosUsed(3))

	// 重置时刻已经过去
	past := time.Now().Add(-time.Hour)
	require.NoError(t, db.Model(user).UpdateColumn("quota_reset_at", past).Error)

	hasQuota, err := service.CheckQuota(user.ID)
	require.NoError(t, err)
	assert.True(t, hasQuota)

	userRepo := repository.NewUserRepository(db)
	updated, err := userRepo.GetByID(user.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, updated.VideosUsedThisMonth)
	require.NotNil(t, updated.QuotaResetAt)
	assert.True(t, updated.QuotaResetAt.After(time.Now()))
}

func TestQuotaService_UseQuota(t *testing.T) {
	service, db, cleanup := setupQuotaService(t)
	defer cleanup()

	user := testutil.TestUser(t, db, testutil.WithVideosUsed(0))

	require.NoError(t, service.UseQuota(user.ID))
	require.NoError(t, service.UseQuota(user.ID))

	userRepo := repository.NewUserRepository(db)
	updated, err := userRepo.GetByID(user.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, updated.VideosUsedThisMonth)
}

func TestQuotaService_ClampMaxComments(t *testing.T) {
	service, _, cleanup := setupQuotaService(t)
	defer cleanup()

	// 未指定走套餐上限
	assert.Equal(t, 100, service.ClampMaxComments("free", 0))
	// 超限被压下来
	assert.Equal(t, 100, service.ClampMaxComments("free", 5000))
	// 限内保留原值
	assert.Equal(t, 50, service.ClampMaxComments("free", 50))
	assert.Equal(t, 5000, service.ClampMaxComments("pro", 5000))
	// 未知套餐回退 free
	assert.Equal(t, 100, service.ClampMaxComments("unknown", 0))
}

func TestQuotaService_GetQuotaInfo(t *testing.T) {
	service, db, cleanup := setupQuotaService(t)
	defer cleanup()

	user := testutil.TestUser(t, db, testutil.WithPlan("starter"), testutil.WithVideosUsed(4))

	info, err := service.GetQuotaInfo(user.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, info.VideosPerMonth)
	assert.Equal(t, 4, info.VideosUsedThisMonth)
	assert.Equal(t, 6, info.VideosRemaining)
	assert.Equal(t, 3000, info.CommentsPerVideo)
}

func TestQuotaService_GetUsage(t *testing.T) {
	service, db, cleanup := setupQuotaService(t)
	defer cleanup()

	user := testutil.TestUser(t, db, testutil.WithVideosUsed(1))

	usage, err := service.GetUsage(user.ID)
	require.NoError(t, err)
	assert.Equal(t, "free", usage.Plan)
	assert.Equal(t, 3, usage.VideosPerMonth)
	assert.Equal(t, 1, usage.VideosUsedThisMonth)
	assert.Equal(t, 2, usage.VideosRemaining)
}

func TestQuotaService_ResetAllQuotas(t *testing.T) {
	service, db, cleanup := setupQuotaService(t)
	defer cleanup()

	u1 := testutil.TestUser(t, db, testutil.WithVideosUsed(3))
	u2 := testutil.TestUser(t, db, testutil.WithVideosUsed(1))

	require.NoError(t, service.ResetAllQuotas())

	userRepo := repository.NewUserRepository(db)
	for _, id := range []int64{u1.ID, u2.ID} {
		updated, err := userRepo.GetByID(id)
		require.NoError(t, err)
		assert.Equal(t, 0, updated.VideosUsedThisMonth)
	}
}

func TestQuotaService_ListPlans(t *testing.T) {
	service, _, cleanup := setupQuotaService(t)
	defer cleanup()

	plans := service.ListPlans()
	require.Len(t, plans, 4)
	assert.Equal(t, "free", plans[0].Name)
	assert.Equal(t, 3, plans[0].VideosPerMonth)
	assert.Equal(t, "business", plans[3].Name)
	assert.Equal(t, 50000, plans[3].CommentsPerVideo)
}
