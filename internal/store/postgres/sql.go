package postgres

// The task table holds the serialized document only; every predicate
// and patch goes through the JSONB operators so the document format
// stays the single source of truth.

const schemaSQL = `
CREATE TABLE IF NOT EXISTS task (data JSONB NOT NULL);
CREATE UNIQUE INDEX IF NOT EXISTS task_rn_idx ON task ((data->>'rn'));
CREATE INDEX IF NOT EXISTS task_status_queue_idx ON task ((data->>'status'), (data->>'queue'));
`

const insertTaskSQL = `
INSERT INTO task (data) VALUES ($1::jsonb)
ON CONFLICT ((data->>'rn')) DO NOTHING
RETURNING data`

const updateTaskSQL = `
UPDATE task SET data = $1::jsonb WHERE data->>'rn' = $2 RETURNING data`

const queryTasksSQL = `
SELECT data FROM task
WHERE data->>'status' LIKE $1
  AND data->>'queue' LIKE $2
  AND ($3 = '%' OR data->>'owner' LIKE $3)
ORDER BY (data->>'priority')::int DESC, data->>'created' ASC
LIMIT $4`

const queryByRNSQL = `
SELECT data FROM task WHERE data->>'rn' = $1`

// leaseBatchSQL claims the best Ready rows and patches them Running in
// one statement. SKIP LOCKED keeps concurrent claimers on disjoint
// rows; an optimistic retry here would double-claim under contention.
const leaseBatchSQL = `
UPDATE task t
SET data = jsonb_set(t.data, '{history}', t.data->'history' || $6::jsonb)
    || jsonb_build_object('status', 'running', 'owner', $3::text, 'deadline', $4::text, 'updated', $5::text)
WHERE t.data->>'rn' IN (
    SELECT data->>'rn' FROM task
    WHERE data->>'status' = 'ready' AND data->>'queue' LIKE $1
    ORDER BY (data->>'priority')::int DESC, data->>'created' ASC
    LIMIT $2
    FOR UPDATE SKIP LOCKED)
RETURNING t.data`

// resetExpiredSQL returns every expired lease to Ready. The Timeout
// history entry is skipped when the lease ended with a Yield, which
// already recorded the hand-back.
const resetExpiredSQL = `
UPDATE task t
SET data = (
    CASE WHEN t.data->'history'->-1->>'typ' = 'TaskYield' THEN t.data
         ELSE jsonb_set(t.data, '{history}', t.data->'history' || jsonb_build_object(
             'typ', 'TaskTimeout',
             'time', $1::text,
             'worker', t.data->>'owner',
             'progress', (t.data->>'progress')::float))
    END)
    || jsonb_build_object('progress', 0, 'status', 'ready', 'owner', null, 'deadline', null, 'updated', $1::text)
WHERE t.data->>'status' = 'running' AND t.data->>'deadline' < $2
RETURNING t.data`

const deleteRetiredSQL = `
DELETE FROM task
WHERE data->>'status' IN ('completed', 'cancelled', 'aborted')
  AND data->>'updated' < $1`
