package service

import (
	"testing"

	"github.com/mmo7amed2010/swenam-sis-sub001/internal/model"
	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntegritySweepReportsWithoutRepairing(t *testing.T) {
	f := newFixture(t)
	sweeper := NewIntegrityService(f.db)
	c := f.course(t)
	m := f.module(t, c.ID, false)
	healthy := f.placeLesson(t, c.ID, m.ID, AddItemOptions{})
	broken := f.placeLesson(t, c.ID, m.ID, AddItemOptions{})

	report, err := sweeper.Sweep(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.ItemsChecked)
	assert.Empty(t, report.Violations)

	require.NoError(t, f.db.Delete(&model.Lesson{}, broken.ContentID).Error)
	require.NoError(t, f.db.Create(&model.ItemProgress{UserID: learnerActor.UserID, ItemID: 4242}).Error)

	report, err = sweeper.Sweep(f.ctx)
	require.NoError(t, err)
	require.Len(t, report.Violations, 2)
	kinds := map[string]uint{}
	for _, v := range report.Violations {
		kinds[v.Kind] = v.ItemID
	}
	assert.Equal(t, broken.ID, kinds[ViolationDanglingItem])
	assert.Equal(t, uint(4242), kinds[ViolationOrphanProgress])

	// 只报告，不修复
	items, err := f.items.CollectItems(f.ctx, m.ID)
	require.NoError(t, err)
	assert.Len(t, items, 2)
	_, err = f.items.ResolveContent(f.ctx, &items[1])
	assert.Error(t, err)
	_, err = f.items.ResolveContent(f.ctx, &items[0])
	assert.NoError(t, err)
	assert.Equal(t, healthy.ID, items[0].ID)
}

func TestIntegritySchedule(t *testing.T) {
	f := newFixture(t)
	c := cron.New()
	_, err := NewIntegrityService(f.db).Schedule(c, "@every 1h")
	assert.NoError(t, err)
	_, err = NewIntegrityService(f.db).Schedule(c, "not a schedule")
	assert.Error(t, err)
}
