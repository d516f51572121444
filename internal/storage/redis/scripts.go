package redis

const (
	// upsertEmployeeScript atomically updates an employee and its name index
	upsertEmployeeScript = `
local employee_key = KEYS[1]   -- stes:employee:{employeeID}
local name_key = KEYS[2]       -- stes:employee:name:{name}
local employees_set = KEYS[3]  -- stes:employees

local id = ARGV[1]
local name = ARGV[2]
local email = ARGV[3]
local department = ARGV[4]
local encoding = ARGV[5]
local active = ARGV[6]
local created_at = ARGV[7]
local updated_at = ARGV[8]

-- Drop the stale name index entry on rename
local old_name = redis.call('HGET', employee_key, 'name')
if old_name and old_name ~= name then
  redis.call('DEL', 'stes:employee:name:' .. old_name)
end

redis.call('HSET', employee_key,
  'id', id,
  'name', name,
  'email', email,
  'department', department,
  'encoding', encoding,
  'active', active,
  'created_at', created_at,
  'updated_at', updated_at
)

redis.call('SET', name_key, id)
redis.call('SADD', employees_set, id)

return 'OK'
`

	// appendTransitionScript atomically writes a transition and its indexes.
	// Fails if the record already exists: the log is append-only.
	appendTransitionScript = `
local transition_key = KEYS[1] -- stes:transition:{id}
local day_key = KEYS[2]        -- stes:transitions:day:{employeeID}:{dayKey}
local index_key = KEYS[3]      -- stes:transitions:index

local id = ARGV[1]
local employee_id = ARGV[2]
local kind = ARGV[3]
local timestamp = ARGV[4]
local day = ARGV[5]
local source = ARGV[6]
local score = ARGV[7]

if redis.call('EXISTS', transition_key) == 1 then
  return redis.error_reply('transition already exists: ' .. id)
end

redis.call('HSET', transition_key,
  'id', id,
  'employee_id', employee_id,
  'kind', kind,
  'timestamp', timestamp,
  'day_key', day,
  'source', source
)

redis.call('ZADD', day_key, score, id)
redis.call('ZADD', index_key, score, id)

return 'OK'
`

	// addEventScript atomically writes a system event and its index
	addEventScript = `
local event_key = KEYS[1]  -- stes:event:{id}
local index_key = KEYS[2]  -- stes:events:index

local id = ARGV[1]
local timestamp = ARGV[2]
local event_type = ARGV[3]
local employee_id = ARGV[4]
local message = ARGV[5]
local details = ARGV[6]
local score = ARGV[7]

redis.call('HSET', event_key,
  'id', id,
  'timestamp', timestamp,
  'type', event_type,
  'employee_id', employee_id,
  'message', message,
  'details', details
)

redis.call('ZADD', index_key, score, id)

return 'OK'
`
)
