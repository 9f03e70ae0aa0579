package data

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/jobkeeper/jobkeeper/internal/domain/model"
	apperrors "github.com/jobkeeper/jobkeeper/internal/errors"
)

// listQuery accumulates WHERE conditions and their arguments for a listing.
type listQuery struct {
	conds []string
	args  []any
}

func (q *listQuery) add(format string, arg any) {
	q.args = append(q.args, arg)
	q.conds = append(q.conds, fmt.Sprintf(format, len(q.args)))
}

func (q *listQuery) where() string {
	return strings.Join(q.conds, " AND ")
}

// List returns one page of jobs for a tenant, newest first. The listing is
// ordered by (creation_time desc, id desc) so pages are stable under
// concurrent inserts. Results and errors are not attached to listed jobs.
//
// A next cursor names the first row of the following page inclusively; a
// previous cursor selects the page ending just before its position. Cursors
// are only produced where the corresponding page exists.
func (s *JobStore) List(ctx context.Context, service, owner string, search model.JobSearch) (*model.JobList, error) {
	if search.Limit < 0 {
		return nil, apperrors.ValidationField("limit", "limit must be positive")
	}

	q := &listQuery{}
	q.add("service = $%d", service)
	if owner != "" {
		q.add("owner = $%d", owner)
	}
	if len(search.Phases) > 0 {
		phases := make([]string, len(search.Phases))
		for i, p := range search.Phases {
			if !p.Valid() {
				return nil, apperrors.Validationf("invalid execution phase: %q", p)
			}
			phases[i] = string(p)
		}
		q.add("phase = ANY($%d)", phases)
	}
	if search.Since != nil {
		q.add("creation_time > $%d", truncateToSecond(*search.Since))
	}

	backward := search.Cursor != nil && search.Cursor.Previous
	if cur := search.Cursor; cur != nil {
		// The next cursor includes its own position; the previous cursor
		// excludes it, since that row opens the following page.
		q.args = append(q.args, cur.Time.UTC(), cur.ID)
		t, id := len(q.args)-1, len(q.args)
		if backward {
			q.conds = append(q.conds, fmt.Sprintf(
				"(creation_time > $%d OR (creation_time = $%d AND id > $%d))", t, t, id))
		} else {
			q.conds = append(q.conds, fmt.Sprintf(
				"(creation_time < $%d OR (creation_time = $%d AND id <= $%d))", t, t, id))
		}
	}

	order := "creation_time DESC, id DESC"
	if backward {
		order = "creation_time ASC, id ASC"
	}

	query := `SELECT ` + jobColumns + ` FROM jobs WHERE ` + q.where() + ` ORDER BY ` + order
	if search.Limit > 0 {
		// One extra row tells us whether another page exists.
		query += fmt.Sprintf(" LIMIT %d", search.Limit+1)
	}

	var jobs []*model.Job
	err := s.withJobTx(ctx, "list jobs", func(tx pgx.Tx) error {
		rows, qerr := tx.Query(ctx, query, q.args...)
		if qerr != nil {
			return fmt.Errorf("select jobs: %w", qerr)
		}
		collected, cerr := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*model.Job, error) {
			return scanJobFromRow(row)
		})
		if cerr != nil {
			return fmt.Errorf("collect jobs: %w", cerr)
		}
		jobs = collected
		return nil
	})
	if err != nil {
		return nil, apperrors.MapDBError(err)
	}

	return assembleJobPage(jobs, search, backward), nil
}

// assembleJobPage trims the probe row, restores newest-first order for
// backward pages, and derives the page cursors.
func assembleJobPage(jobs []*model.Job, search model.JobSearch, backward bool) *model.JobList {
	hasMore := search.Limit > 0 && len(jobs) > search.Limit

	var extra *model.Job
	if hasMore {
		extra = jobs[search.Limit]
		jobs = jobs[:search.Limit]
	}

	if backward {
		for i, j := 0, len(jobs)-1; i < j; i, j = i+1, j-1 {
			jobs[i], jobs[j] = jobs[j], jobs[i]
		}
	}

	list := &model.JobList{Entries: jobs}

	if backward {
		// The page after a backward page starts at the original position.
		list.NextCursor = &model.JobCursor{
			Time: search.Cursor.Time,
			ID:   search.Cursor.ID,
		}
		if hasMore {
			list.PrevCursor = &model.JobCursor{
				Time:     jobs[0].CreationTime,
				ID:       jobs[0].ID,
				Previous: true,
			}
		}
		return list
	}

	if hasMore {
		list.NextCursor = &model.JobCursor{
			Time: extra.CreationTime,
			ID:   extra.ID,
		}
	}
	if search.Cursor != nil && len(jobs) > 0 {
		list.PrevCursor = &model.JobCursor{
			Time:     jobs[0].CreationTime,
			ID:       jobs[0].ID,
			Previous: true,
		}
	}
	return list
}
