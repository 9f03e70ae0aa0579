package data

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jobkeeper/jobkeeper/internal/domain/model"
	apperrors "github.com/jobkeeper/jobkeeper/internal/errors"
	"github.com/jobkeeper/jobkeeper/internal/testutil"
)

func pageJob(id int64, created time.Time) *model.Job {
	return &model.Job{ID: id, CreationTime: created}
}

func TestAssembleJobPage(t *testing.T) {
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	t.Run("forward page without more rows has no cursors", func(t *testing.T) {
		jobs := []*model.Job{pageJob(3, base), pageJob(2, base.Add(-time.Minute))}

		list := assembleJobPage(jobs, model.JobSearch{Limit: 5}, false)

		assert.Len(t, list.Entries, 2)
		assert.Nil(t, list.NextCursor)
		assert.Nil(t, list.PrevCursor)
	})

	t.Run("forward page trims probe row into next cursor", func(t *testing.T) {
		jobs := []*model.Job{
			pageJob(5, base),
			pageJob(4, base.Add(-time.Minute)),
			pageJob(3, base.Add(-2*time.Minute)),
		}

		list := assembleJobPage(jobs, model.JobSearch{Limit: 2}, false)

		require.Len(t, list.Entries, 2)
		assert.Equal(t, int64(5), list.Entries[0].ID)
		require.NotNil(t, list.NextCursor)
		assert.Equal(t, int64(3), list.NextCursor.ID)
		assert.False(t, list.NextCursor.Previous)
		assert.Nil(t, list.PrevCursor)
	})

	t.Run("forward page with cursor gains a previous cursor", func(t *testing.T) {
		cursor := &model.JobCursor{Time: base, ID: 5}
		jobs := []*model.Job{pageJob(5, base), pageJob(4, base.Add(-time.Minute))}

		list := assembleJobPage(jobs, model.JobSearch{Limit: 5, Cursor: cursor}, false)

		assert.Nil(t, list.NextCursor)
		require.NotNil(t, list.PrevCursor)
		assert.Equal(t, int64(5), list.PrevCursor.ID)
		assert.True(t, list.PrevCursor.Previous)
	})

	t.Run("backward page restores newest-first order", func(t *testing.T) {
		cursor := &model.JobCursor{Time: base.Add(-3 * time.Minute), ID: 2, Previous: true}
		// Backward queries scan ascending.
		jobs := []*model.Job{
			pageJob(3, base.Add(-2*time.Minute)),
			pageJob(4, base.Add(-time.Minute)),
		}

		list := assembleJobPage(jobs, model.JobSearch{Limit: 5, Cursor: cursor}, true)

		require.Len(t, list.Entries, 2)
		assert.Equal(t, int64(4), list.Entries[0].ID)
		assert.Equal(t, int64(3), list.Entries[1].ID)

		// The page after a backward page starts at the original position.
		require.NotNil(t, list.NextCursor)
		assert.Equal(t, cursor.ID, list.NextCursor.ID)
		assert.False(t, list.NextCursor.Previous)
		assert.Nil(t, list.PrevCursor)
	})

	t.Run("backward page with more rows keeps a previous cursor", func(t *testing.T) {
		cursor := &model.JobCursor{Time: base.Add(-4 * time.Minute), ID: 1, Previous: true}
		jobs := []*model.Job{
			pageJob(2, base.Add(-3*time.Minute)),
			pageJob(3, base.Add(-2*time.Minute)),
			pageJob(4, base.Add(-time.Minute)),
		}

		list := assembleJobPage(jobs, model.JobSearch{Limit: 2, Cursor: cursor}, true)

		require.Len(t, list.Entries, 2)
		assert.Equal(t, int64(3), list.Entries[0].ID)
		require.NotNil(t, list.PrevCursor)
		assert.Equal(t, int64(3), list.PrevCursor.ID)
		assert.True(t, list.PrevCursor.Previous)
	})
}

func TestJobStore_List(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithTestDB(t, func(db *sql.DB) {
		tp := NewFixedTimeProvider(testutil.TestTime())
		store := NewJobStore(db, StoreConfig{TimeProvider: tp})
		ctx := context.Background()

		var created []*model.Job
		for i := 0; i < 5; i++ {
			job, err := store.Add(ctx, "tap", "alice", testutil.NewJobRequest().Build())
			require.NoError(t, err)
			created = append(created, job)
			tp.AddTime(time.Minute)
		}
		// One job for another tenant that must never appear.
		_, err := store.Add(ctx, "tap", "bob", testutil.NewJobRequest().Build())
		require.NoError(t, err)

		t.Run("unpaginated listing returns newest first", func(t *testing.T) {
			list, err := store.List(ctx, "tap", "alice", model.JobSearch{})
			require.NoError(t, err)
			require.Len(t, list.Entries, 5)
			assert.Equal(t, created[4].ID, list.Entries[0].ID)
			assert.Equal(t, created[0].ID, list.Entries[4].ID)
			assert.Nil(t, list.NextCursor)
			assert.Nil(t, list.PrevCursor)
		})

		t.Run("pagination walks the full listing", func(t *testing.T) {
			page1, err := store.List(ctx, "tap", "alice", model.JobSearch{Limit: 2})
			require.NoError(t, err)
			require.Len(t, page1.Entries, 2)
			require.NotNil(t, page1.NextCursor)

			page2, err := store.List(ctx, "tap", "alice", model.JobSearch{Limit: 2, Cursor: page1.NextCursor})
			require.NoError(t, err)
			require.Len(t, page2.Entries, 2)
			require.NotNil(t, page2.NextCursor)
			require.NotNil(t, page2.PrevCursor)

			page3, err := store.List(ctx, "tap", "alice", model.JobSearch{Limit: 2, Cursor: page2.NextCursor})
			require.NoError(t, err)
			require.Len(t, page3.Entries, 1)
			assert.Nil(t, page3.NextCursor)

			var walked []int64
			for _, page := range []*model.JobList{page1, page2, page3} {
				for _, j := range page.Entries {
					walked = append(walked, j.ID)
				}
			}
			want := []int64{created[4].ID, created[3].ID, created[2].ID, created[1].ID, created[0].ID}
			assert.Equal(t, want, walked)
		})

		t.Run("previous cursor returns the prior page", func(t *testing.T) {
			page1, err := store.List(ctx, "tap", "alice", model.JobSearch{Limit: 2})
			require.NoError(t, err)
			page2, err := store.List(ctx, "tap", "alice", model.JobSearch{Limit: 2, Cursor: page1.NextCursor})
			require.NoError(t, err)
			require.NotNil(t, page2.PrevCursor)

			back, err := store.List(ctx, "tap", "alice", model.JobSearch{Limit: 2, Cursor: page2.PrevCursor})
			require.NoError(t, err)
			require.Len(t, back.Entries, 2)
			assert.Equal(t, page1.Entries[0].ID, back.Entries[0].ID)
			assert.Equal(t, page1.Entries[1].ID, back.Entries[1].ID)

			// Moving forward again lands on page2.
			require.NotNil(t, back.NextCursor)
			again, err := store.List(ctx, "tap", "alice", model.JobSearch{Limit: 2, Cursor: back.NextCursor})
			require.NoError(t, err)
			require.Len(t, again.Entries, 2)
			assert.Equal(t, page2.Entries[0].ID, again.Entries[0].ID)
		})

		t.Run("phase filter", func(t *testing.T) {
			_, err := store.MarkAborted(ctx, model.JobIdentifier{Service: "tap", ID: created[0].ID, Owner: "alice"})
			require.NoError(t, err)

			list, err := store.List(ctx, "tap", "alice", model.JobSearch{
				Phases: []model.ExecutionPhase{model.PhaseAborted},
			})
			require.NoError(t, err)
			require.Len(t, list.Entries, 1)
			assert.Equal(t, created[0].ID, list.Entries[0].ID)
		})

		t.Run("since filter excludes older jobs", func(t *testing.T) {
			since := created[2].CreationTime
			list, err := store.List(ctx, "tap", "alice", model.JobSearch{Since: &since})
			require.NoError(t, err)
			require.Len(t, list.Entries, 2)
			assert.Equal(t, created[4].ID, list.Entries[0].ID)
		})

		t.Run("owner scoping hides other tenants", func(t *testing.T) {
			list, err := store.List(ctx, "tap", "bob", model.JobSearch{})
			require.NoError(t, err)
			assert.Len(t, list.Entries, 1)
		})

		t.Run("invalid phase is rejected", func(t *testing.T) {
			_, err := store.List(ctx, "tap", "alice", model.JobSearch{
				Phases: []model.ExecutionPhase{"RUNNING"},
			})
			require.Error(t, err)
			assert.True(t, apperrors.IsValidation(err))
		})

		t.Run("negative limit is rejected", func(t *testing.T) {
			_, err := store.List(ctx, "tap", "alice", model.JobSearch{Limit: -1})
			require.Error(t, err)
			assert.True(t, apperrors.IsValidation(err))
		})
	})
}
