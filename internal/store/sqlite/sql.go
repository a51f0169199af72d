package sqlite

const schemaSQL = `
CREATE TABLE IF NOT EXISTS task (data TEXT NOT NULL CHECK (json_valid(data)));
CREATE UNIQUE INDEX IF NOT EXISTS task_rn_idx ON task (json_extract(data, '$.rn'));
CREATE INDEX IF NOT EXISTS task_status_queue_idx ON task (json_extract(data, '$.status'), json_extract(data, '$.queue'));
`

const insertTaskSQL = `
INSERT INTO task (data) VALUES (json(?))
ON CONFLICT DO NOTHING
RETURNING data`

const updateTaskSQL = `
UPDATE task SET data = json(?) WHERE data->>'rn' = ? RETURNING data`

const queryTasksSQL = `
SELECT data FROM task
WHERE data->>'status' LIKE ?
  AND data->>'queue' LIKE ?
  AND (? = '%' OR data->>'owner' LIKE ?)
ORDER BY CAST(data->>'priority' AS INTEGER) DESC, data->>'created' ASC
LIMIT ?`

const queryByRNSQL = `
SELECT data FROM task WHERE data->>'rn' = ?`

const leaseBatchSQL = `
UPDATE task SET data = json_set(data,
    '$.status', 'running',
    '$.owner', ?,
    '$.deadline', ?,
    '$.updated', ?,
    '$.history[#]', json(?))
WHERE data->>'rn' IN (
    SELECT data->>'rn' FROM task
    WHERE data->>'status' = 'ready' AND data->>'queue' LIKE ?
    ORDER BY CAST(data->>'priority' AS INTEGER) DESC, data->>'created' ASC
    LIMIT ?)
RETURNING data`

// resetExpiredSQL mirrors the postgres statement: the Timeout entry is
// skipped when the lease ended with a Yield.
const resetExpiredSQL = `
UPDATE task SET data = json_set(
    CASE WHEN json_extract(data, '$.history[#-1].typ') = 'TaskYield' THEN data
         ELSE json_set(data, '$.history[#]', json_object(
             'typ', 'TaskTimeout',
             'time', ?,
             'worker', data->>'owner',
             'progress', CAST(data->>'progress' AS REAL))) END,
    '$.status', 'ready',
    '$.owner', NULL,
    '$.deadline', NULL,
    '$.progress', 0,
    '$.updated', ?)
WHERE data->>'status' = 'running' AND data->>'deadline' < ?
RETURNING data`

const deleteRetiredSQL = `
DELETE FROM task
WHERE data->>'status' IN ('completed', 'cancelled', 'aborted')
  AND data->>'updated' < ?`
