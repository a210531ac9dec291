package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidField is returned when a pattern delete names a column outside
// the allow-list.
var ErrInvalidField = errors.New("invalid field name")

// deletableFields is the allow-list for DeleteByField. Restricting the
// identifier prevents injection through the field argument.
var deletableFields = map[string]bool{
	"company": true,
	"title":   true,
}

const jobColumns = `id, site, job_url, job_url_direct, title, company, location,
	date_posted, job_type, salary_source, "interval", min_amount, max_amount,
	currency, is_remote, job_level, job_function, listing_type, emails,
	description, company_url, date_scraped, search_query`

// InsertJobs inserts the batch, skipping any listing whose ID already exists.
// Returns the number of newly inserted rows; re-ingesting a known batch is a
// no-op.
func (s *Session) InsertJobs(ctx context.Context, jobs []Job, searchQuery string) (int, error) {
	if len(jobs) == 0 {
		return 0, nil
	}

	existing := make(map[string]bool)
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM scraped_jobs`)
	if err != nil {
		return 0, fmt.Errorf("load existing ids: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return 0, err
		}
		existing[id] = true
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}

	now := time.Now()
	fresh := make([]Job, 0, len(jobs))
	for _, j := range jobs {
		j.ID = j.DeriveID()
		if existing[j.ID] {
			continue
		}
		// Guard against duplicate ids inside a single batch too.
		existing[j.ID] = true
		j.DateScraped = now
		j.SearchQuery = searchQuery
		fresh = append(fresh, j)
	}
	if len(fresh) == 0 {
		s.log.Info("no new jobs to insert", "search", searchQuery)
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO scraped_jobs (`+jobColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23)`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	for _, j := range fresh {
		if _, err := stmt.ExecContext(ctx,
			j.ID, j.Site, j.JobURL, j.JobURLDirect, j.Title, j.Company, j.Location,
			j.DatePosted, j.JobType, j.SalarySource, j.Interval, j.MinAmount, j.MaxAmount,
			j.Currency, j.IsRemote, j.JobLevel, j.JobFunction, j.ListingType, j.Emails,
			j.Description, j.CompanyURL, j.DateScraped, j.SearchQuery,
		); err != nil {
			return 0, fmt.Errorf("insert job %s: %w", j.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}

	s.log.Info("inserted new jobs", "count", len(fresh), "search", searchQuery)
	return len(fresh), nil
}

// ClearAll deletes every row from scraped_jobs, keeping the table.
func (s *Session) ClearAll(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM scraped_jobs`)
	if err != nil {
		return 0, fmt.Errorf("clear jobs: %w", err)
	}
	return res.RowsAffected()
}

// DeleteBefore deletes jobs scraped before the given cutoff.
func (s *Session) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM scraped_jobs WHERE date_scraped < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete before %s: %w", cutoff.Format("2006-01-02"), err)
	}
	return res.RowsAffected()
}

// DeleteByIDs removes the listed ids in a single bulk delete.
func (s *Session) DeleteByIDs(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM scraped_jobs WHERE id = ANY($1)`, ids)
	if err != nil {
		return 0, fmt.Errorf("delete by ids: %w", err)
	}
	return res.RowsAffected()
}

// DeleteByField deletes rows whose field matches any of the LIKE patterns,
// case-insensitively. field must be on the allow-list.
func (s *Session) DeleteByField(ctx context.Context, field string, patterns []string) (int64, error) {
	if !deletableFields[field] {
		return 0, fmt.Errorf("%w: %q", ErrInvalidField, field)
	}
	var total int64
	query := fmt.Sprintf(`DELETE FROM scraped_jobs WHERE LOWER(%s) LIKE $1`, field)
	for _, pattern := range patterns {
		res, err := s.db.ExecContext(ctx, query, strings.ToLower(pattern))
		if err != nil {
			return total, fmt.Errorf("delete by %s pattern %q: %w", field, pattern, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return total, err
		}
		if n > 0 {
			s.log.Info("pattern matched", "field", field, "pattern", pattern, "rows", n)
		}
		total += n
	}
	return total, nil
}

// DeleteBySalary deletes jobs below the compensation thresholds: rows whose
// stated minimum is under minThr with a maximum under maxThr, and rows whose
// minimum clears the floor but whose maximum still falls short of maxThr.
func (s *Session) DeleteBySalary(ctx context.Context, minThr, maxThr float64) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM scraped_jobs
		WHERE (min_amount <> 0 AND min_amount < $1 AND max_amount < $2)
		   OR (min_amount >= $1 AND max_amount < $2)`,
		minThr, maxThr)
	if err != nil {
		return 0, fmt.Errorf("delete by salary: %w", err)
	}
	return res.RowsAffected()
}

// CountJobs returns the current row count of scraped_jobs.
func (s *Session) CountJobs(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM scraped_jobs`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count jobs: %w", err)
	}
	return n, nil
}

// DuplicateRows enumerates the fields the duplicate-resolution engine needs,
// for every row with a usable (title, company) pair.
func (s *Session) DuplicateRows(ctx context.Context) ([]Job, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, site, title, company, description, min_amount, max_amount,
		       job_url, is_remote, location, search_query, date_posted
		FROM scraped_jobs
		WHERE title IS NOT NULL AND company IS NOT NULL
		ORDER BY title, company, site`)
	if err != nil {
		return nil, fmt.Errorf("enumerate duplicate candidates: %w", err)
	}
	defer rows.Close()

	var out []Job
	for rows.Next() {
		var (
			j              Job
			desc, loc      sql.NullString
			query, posted  sql.NullString
			jobURL         sql.NullString
			minAmt, maxAmt sql.NullFloat64
			isRemote       sql.NullBool
		)
		if err := rows.Scan(&j.ID, &j.Site, &j.Title, &j.Company, &desc,
			&minAmt, &maxAmt, &jobURL, &isRemote, &loc, &query, &posted); err != nil {
			return nil, err
		}
		j.Description = desc.String
		j.MinAmount = minAmt.Float64
		j.MaxAmount = maxAmt.Float64
		j.JobURL = jobURL.String
		j.IsRemote = isRemote.Bool
		j.Location = loc.String
		j.SearchQuery = query.String
		j.DatePosted = posted.String
		out = append(out, j)
	}
	return out, rows.Err()
}

// LogSearch records one acquisition run in search_history.
func (s *Session) LogSearch(ctx context.Context, searchQuery string, params map[string]any, jobsFound int) error {
	encoded, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("encode search parameters: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO search_history (run_id, search_query, parameters, timestamp, jobs_found)
		VALUES ($1, $2, $3, $4, $5)`,
		uuid.NewString(), searchQuery, string(encoded), time.Now(), jobsFound)
	if err != nil {
		return fmt.Errorf("log search: %w", err)
	}
	return nil
}
