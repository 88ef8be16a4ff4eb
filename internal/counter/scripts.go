package counter

import "github.com/redis/go-redis/v9"

// reserveScript is the atomic reservation: read the stock key, and if the
// value is at least 1, decrement it. Redis executes the script as a single
// indivisible command against the key, so concurrent contenders are
// serialized server-side and the counter can never go negative.
//
// KEYS: [1] stock key
// Returns: 1 on a successful decrement, 0 when stock is exhausted or the
// key is missing.
const reserveScript = `
local stock = tonumber(redis.call('GET', KEYS[1]) or 0)
if stock <= 0 then
	return 0
end
redis.call('DECR', KEYS[1])
return 1
`

// reserve is registered once at package initialization; go-redis runs it via
// EVALSHA and falls back to EVAL on a script-cache miss.
var reserve = redis.NewScript(reserveScript)
