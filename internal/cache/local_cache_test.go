package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mailboard/backend/internal/domain"
)

func TestLocalOverviewCache(t *testing.T) {
	c := NewLocalOverviewCache(time.Hour)

	got, err := c.GetCachedOverview("u1")
	require.NoError(t, err)
	assert.Nil(t, got, "未写入时应当未命中")

	overview := &domain.AnalyticsOverview{TotalSent: 3, Scheduled: 1, OpenRate: "66.7%"}
	require.NoError(t, c.CacheOverview("u1", overview))

	got, err = c.GetCachedOverview("u1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 3, got.TotalSent)

	// 用户之间互不影响
	other, err := c.GetCachedOverview("u2")
	require.NoError(t, err)
	assert.Nil(t, other)

	require.NoError(t, c.InvalidateOverview("u1"))
	got, err = c.GetCachedOverview("u1")
	require.NoError(t, err)
	assert.Nil(t, got, "失效后应当未命中")
}

func TestLocalOverviewCacheExpiry(t *testing.T) {
	c := NewLocalOverviewCache(10 * time.Millisecond)

	require.NoError(t, c.CacheOverview("u1", &domain.AnalyticsOverview{TotalSent: 1}))
	time.Sleep(30 * time.Millisecond)

	got, err := c.GetCachedOverview("u1")
	require.NoError(t, err)
	assert.Nil(t, got, "过期后应当未命中")
}
