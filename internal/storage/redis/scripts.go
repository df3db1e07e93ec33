package redisrepository

import "github.com/go-redis/redis/v8"

// The ':scheme:' and ':holder:' key layouts below must match schemeKey and
// holderKey. ARGV[1] carries the key prefix wherever a script derives a key.

// KEYS: scheme, holder. ARGV: prefix, pstr, credId, psaId, ttl in ms.
var setLockScript = redis.NewScript(`
local prev = redis.call('GET', KEYS[2])
if prev and prev ~= ARGV[2] then
  local prevKey = ARGV[1] .. ':scheme:' .. prev
  if redis.call('HGET', prevKey, 'credId') == ARGV[3] then
    redis.call('DEL', prevKey)
  end
end
local owner = redis.call('HGET', KEYS[1], 'credId')
if owner and owner ~= ARGV[3] then
  local ownerKey = ARGV[1] .. ':holder:' .. owner
  if redis.call('GET', ownerKey) == ARGV[2] then
    redis.call('DEL', ownerKey)
  end
end
redis.call('DEL', KEYS[1])
redis.call('HSET', KEYS[1], 'pstr', ARGV[2], 'credId', ARGV[3], 'psaId', ARGV[4])
redis.call('SET', KEYS[2], ARGV[2])
local ttl = tonumber(ARGV[5])
if ttl > 0 then
  redis.call('PEXPIRE', KEYS[1], ttl)
  redis.call('PEXPIRE', KEYS[2], ttl)
end
return 1
`)

// KEYS: holder. ARGV: prefix, credId.
var lockByIdentityScript = redis.NewScript(`
local pstr = redis.call('GET', KEYS[1])
if not pstr then
  return false
end
local fields = redis.call('HMGET', ARGV[1] .. ':scheme:' .. pstr, 'pstr', 'credId', 'psaId')
if fields[2] ~= ARGV[2] then
  return false
end
return fields
`)

// KEYS: scheme. ARGV: prefix, pstr.
var releaseBySchemeScript = redis.NewScript(`
local owner = redis.call('HGET', KEYS[1], 'credId')
if not owner then
  return 0
end
redis.call('DEL', KEYS[1])
local ownerKey = ARGV[1] .. ':holder:' .. owner
if redis.call('GET', ownerKey) == ARGV[2] then
  redis.call('DEL', ownerKey)
end
return 1
`)

// KEYS: holder. ARGV: prefix, credId.
var releaseByIdentityScript = redis.NewScript(`
local pstr = redis.call('GET', KEYS[1])
if not pstr then
  return 0
end
redis.call('DEL', KEYS[1])
local schemeKey = ARGV[1] .. ':scheme:' .. pstr
if redis.call('HGET', schemeKey, 'credId') == ARGV[2] then
  redis.call('DEL', schemeKey)
end
return 1
`)

// KEYS: scheme, holder. ARGV: pstr, credId.
var releaseExactScript = redis.NewScript(`
if redis.call('HGET', KEYS[1], 'credId') ~= ARGV[2] then
  return 0
end
redis.call('DEL', KEYS[1])
if redis.call('GET', KEYS[2]) == ARGV[1] then
  redis.call('DEL', KEYS[2])
end
return 1
`)
