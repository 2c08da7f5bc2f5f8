package holds

// Semua mutasi hold lewat Lua supaya check + write jadi satu titik serialisasi
// per SKU di server. Dua key per SKU (hash qty + zset expiry) selalu diubah
// bareng di script yg sama, jadi kontribusi user ke agregat dan hold-nya
// expire di instant logis yg sama.
//
// KEYS[1] = hold:q:{sku}    (hash userID -> qty)
// KEYS[2] = hold:exp:{sku}  (zset userID -> expiry unix-milli)
// KEYS[3] = hold:skus:<uid> (set sku yg dipegang user; utk listing)
//
// ARGV[1] selalu now dalam unix-milli (dikirim dari Go biar clock bisa
// di-inject di test).

// Prelude: buang hold yg sudah lewat expiry dari hash + zset.
const pruneLua = `
local now = tonumber(ARGV[1])
local expired = redis.call('ZRANGEBYSCORE', KEYS[2], '-inf', now)
for _, u in ipairs(expired) do
  redis.call('HDEL', KEYS[1], u)
end
if #expired > 0 then
  redis.call('ZREMRANGEBYSCORE', KEYS[2], '-inf', now)
end
`

// Agregat SELALU diturunkan dari hold yg masih hidup, tidak pernah disimpan
// terpisah. Tidak ada counter kedua = tidak ada drift.
const sumLua = `
local agg = 0
for _, q in ipairs(redis.call('HVALS', KEYS[1])) do
  agg = agg + tonumber(q)
end
`

// reserve: ARGV[2]=userID ARGV[3]=qty ARGV[4]=totalStock ARGV[5]=ttlMs ARGV[6]=sku
// Re-check admission atomik terhadap agregat pasca-prune, bukan snapshot
// si caller. Balikan {0, available} kalau ditolak, {1, heldBaru} kalau lolos.
// Reserve ulang utk (user,sku) yg sama: qty dijumlah, TTL digeser (sliding).
const reserveLua = pruneLua + sumLua + `
local qty = tonumber(ARGV[3])
local total = tonumber(ARGV[4])
if total - agg < qty then
  return {0, total - agg}
end
local held = redis.call('HINCRBY', KEYS[1], ARGV[2], qty)
redis.call('ZADD', KEYS[2], now + tonumber(ARGV[5]), ARGV[2])
redis.call('SADD', KEYS[3], ARGV[6])
return {1, held}
`

// cancel: ARGV[2]=userID ARGV[3]=qty (-1 = semua) ARGV[4]=sku
// Hold yg sudah hilang/expire dianggap sudah dibatalkan: balikan 0, bukan error.
const cancelLua = pruneLua + `
local held = tonumber(redis.call('HGET', KEYS[1], ARGV[2]) or '0')
if held <= 0 then
  redis.call('SREM', KEYS[3], ARGV[4])
  return 0
end
local qty = tonumber(ARGV[3])
local c
if qty < 0 or qty >= held then c = held else c = qty end
local rem = held - c
if rem > 0 then
  redis.call('HSET', KEYS[1], ARGV[2], rem)
else
  redis.call('HDEL', KEYS[1], ARGV[2])
  redis.call('ZREM', KEYS[2], ARGV[2])
  redis.call('SREM', KEYS[3], ARGV[4])
end
return c
`

// release: ARGV[2]=userID ARGV[3]=qty ARGV[4]=sku
// Beda dgn cancel: qty melebihi held = -1 (over-release), tidak di-clamp.
const releaseLua = pruneLua + `
local held = tonumber(redis.call('HGET', KEYS[1], ARGV[2]) or '0')
local qty = tonumber(ARGV[3])
if qty > held then
  return -1
end
local rem = held - qty
if rem > 0 then
  redis.call('HSET', KEYS[1], ARGV[2], rem)
else
  redis.call('HDEL', KEYS[1], ARGV[2])
  redis.call('ZREM', KEYS[2], ARGV[2])
  redis.call('SREM', KEYS[3], ARGV[4])
end
return qty
`

// held: ARGV[2]=userID
const heldLua = pruneLua + `
return tonumber(redis.call('HGET', KEYS[1], ARGV[2]) or '0')
`

// aggregate: total qty semua hold hidup utk satu SKU.
const aggregateLua = pruneLua + sumLua + `
return agg
`

// prune: dipakai sweep janitor; balikan jumlah hold yg dibuang.
const pruneOnlyLua = pruneLua + `
return #expired
`
