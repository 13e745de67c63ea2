package mysql

// Note: keep the column lists in sync with scanReview / scanJob.
const reviewCols = `id, title, title_en, slug, category, content, content_en, score,
  pros, cons, pros_en, cons_en, images, youtube_videos, status,
  igdb_id, tmdb_id, amazon_asin, hardware_id, specs, metadata, created_at, updated_at`

const insertReviewSQL = `
INSERT INTO reviews
  (title, title_en, slug, category, content, content_en, score,
   pros, cons, pros_en, cons_en, images, youtube_videos, status,
   igdb_id, tmdb_id, amazon_asin, hardware_id, specs, metadata, created_at, updated_at)
VALUES
  (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

const updateReviewStatusSQL = `UPDATE reviews SET status = ?, updated_at = ? WHERE id = ?`

const getReviewSQL = `SELECT ` + reviewCols + ` FROM reviews WHERE id = ?`

const getReviewBySlugSQL = `SELECT ` + reviewCols + ` FROM reviews WHERE slug = ?`

const findReviewByTitleSQL = `
SELECT ` + reviewCols + `
FROM reviews
WHERE category = ? AND (LOWER(title) = LOWER(?) OR LOWER(title_en) = LOWER(?))
ORDER BY id
LIMIT 1`

const slugExistsSQL = `SELECT EXISTS(SELECT 1 FROM reviews WHERE slug = ?)`

const hardwareCols = `id, name, name_en, slug, type, manufacturer, model, description,
  specs, images, release_date, msrp, created_at`

const insertHardwareSQL = `
INSERT INTO hardware
  (name, name_en, slug, type, manufacturer, model, description, specs, images, release_date, msrp, created_at)
VALUES
  (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

const getHardwareBySlugSQL = `SELECT ` + hardwareCols + ` FROM hardware WHERE slug = ?`

// -----------------------------------------------------------------------------
// JOBS
// -----------------------------------------------------------------------------

const jobCols = `id, category, status, total, processed, successful, failed, skipped,
  current_batch, total_batches, last_processed_index, eta_seconds,
  queue, errors, reviews, options, created_at, updated_at, started_at, completed_at`

const insertJobSQL = `
INSERT INTO jobs (` + jobCols + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

const updateJobSQL = `
UPDATE jobs SET
  status = ?, total = ?, processed = ?, successful = ?, failed = ?, skipped = ?,
  current_batch = ?, total_batches = ?, last_processed_index = ?, eta_seconds = ?,
  queue = ?, errors = ?, reviews = ?, options = ?,
  updated_at = ?, started_at = ?, completed_at = ?
WHERE id = ?
`

const getJobSQL = `SELECT ` + jobCols + ` FROM jobs WHERE id = ?`

const listRecentJobsSQL = `SELECT ` + jobCols + ` FROM jobs ORDER BY created_at DESC, id LIMIT ?`

const jobExistsSQL = `SELECT EXISTS(SELECT 1 FROM jobs WHERE id = ?)`
