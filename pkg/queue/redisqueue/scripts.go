package redisqueue

import "github.com/redis/go-redis/v9"

// Message hash fields.
const (
	fieldData       = "data"
	fieldStatus     = "status"
	fieldHome       = "home"
	fieldScore      = "score"
	fieldReservedOn = "reserved_on"
	fieldTimesOutOn = "times_out_on"
)

// releaseFunc moves one reserved id back to the available set it came from.
const releaseFunc = `
local function release(prefix, reserved, id)
  if redis.call('ZREM', reserved, id) == 0 then
    return false
  end
  local key = prefix .. id
  local home = redis.call('HGET', key, 'home')
  if not home then
    return false
  end
  redis.call('ZADD', home, redis.call('HGET', key, 'score'), id)
  redis.call('HSET', key, 'status', 'available')
  redis.call('HDEL', key, 'reserved_on', 'times_out_on')
  return true
end
`

var (
	// KEYS: available. ARGV: message prefix, stop index.
	pullScript = redis.NewScript(`
local ids = redis.call('ZRANGE', KEYS[1], 0, ARGV[2])
local result = {}
for _, id in ipairs(ids) do
  redis.call('ZREM', KEYS[1], id)
  local key = ARGV[1] .. id
  local data = redis.call('HGET', key, 'data')
  redis.call('DEL', key)
  if data then
    table.insert(result, data)
  end
end
return result
`)

	// KEYS: available, reserved. ARGV: message prefix, stop index, reserved on, times out on.
	reserveScript = redis.NewScript(`
local ids = redis.call('ZRANGE', KEYS[1], 0, ARGV[2])
local result = {}
for _, id in ipairs(ids) do
  redis.call('ZREM', KEYS[1], id)
  local key = ARGV[1] .. id
  local data = redis.call('HGET', key, 'data')
  if data then
    redis.call('ZADD', KEYS[2], ARGV[4], id)
    redis.call('HSET', key, 'status', 'reserved', 'reserved_on', ARGV[3], 'times_out_on', ARGV[4])
    table.insert(result, data)
  end
end
return result
`)

	// KEYS: reserved. ARGV: message prefix, ids...
	deleteScript = redis.NewScript(`
local deleted = {}
for i = 2, #ARGV do
  if redis.call('ZREM', KEYS[1], ARGV[i]) == 1 then
    redis.call('DEL', ARGV[1] .. ARGV[i])
    table.insert(deleted, ARGV[i])
  end
end
return deleted
`)

	// KEYS: reserved. ARGV: message prefix, ids...
	releaseScript = redis.NewScript(releaseFunc + `
local released = {}
for i = 2, #ARGV do
  if release(ARGV[1], KEYS[1], ARGV[i]) then
    table.insert(released, ARGV[i])
  end
end
return released
`)

	// KEYS: reserved. ARGV: message prefix, now.
	releaseTimedoutScript = redis.NewScript(releaseFunc + `
local released = {}
local ids = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[2])
for _, id in ipairs(ids) do
  if release(ARGV[1], KEYS[1], id) then
    table.insert(released, id)
  end
end
return released
`)
)
