// tracker.go -- Redis-backed failed-login attempt tracker.
//
// Two independent scopes: identity (normalized email) and source address
// (client IP). Each scope keeps a rolling failure counter and a lock key.
// Locked-if-either (OR) semantics; a success clears the succeeding request's
// own scopes (its identity and the address it came from), so a user's own
// stale failures never lock them out, while an attacker's lock on a
// different address survives one recovered account.
package store

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisAttemptTracker counts failed logins and reports lockout state.
// All state lives in Redis so counters are shared across instances and
// expire without a sweeper.
type RedisAttemptTracker struct {
	rdb    *redis.Client
	policy LockoutPolicy
}

// NewRedisAttemptTracker returns a tracker applying policy to both scopes.
func NewRedisAttemptTracker(rdb *redis.Client, policy LockoutPolicy) *RedisAttemptTracker {
	return &RedisAttemptTracker{rdb: rdb, policy: policy}
}

// CheckHealth pings Redis; used by the health endpoint.
func (t *RedisAttemptTracker) CheckHealth(ctx context.Context) error {
	return t.rdb.Ping(ctx).Err()
}

// failScript increments one scope's failure counter and re-arms its expiry,
// then sets (or refreshes) the lock key once the counter reaches the
// threshold. INCR + check run server-side as one script, so two concurrent
// failures can never both observe "not yet locked" and skip the lock.
// KEYS[1] = counter, KEYS[2] = lock
// ARGV[1] = window ms, ARGV[2] = max failures, ARGV[3] = cooldown ms
var failScript = redis.NewScript(`
local count = redis.call('INCR', KEYS[1])
redis.call('PEXPIRE', KEYS[1], ARGV[1])
if count >= tonumber(ARGV[2]) then
    redis.call('SET', KEYS[2], '1', 'PX', ARGV[3])
end
return count
`)

func failKey(scope, value string) string {
	return fmt.Sprintf("lockout:fail:%s:%s", scope, value)
}

func lockKey(scope, value string) string {
	return fmt.Sprintf("lockout:lock:%s:%s", scope, value)
}

// RecordFailure registers one failed attempt against both scopes.
// The counter window and the lock cooldown are both measured from this,
// the most recent failure: every call re-arms the expiries.
func (t *RedisAttemptTracker) RecordFailure(ctx context.Context, identity, source string) error {
	windowMs := t.policy.Window.Milliseconds()
	cooldownMs := t.policy.Cooldown.Milliseconds()

	for scope, value := range map[string]string{"email": identity, "ip": source} {
		if value == "" {
			continue
		}
		err := failScript.Run(ctx, t.rdb,
			[]string{failKey(scope, value), lockKey(scope, value)},
			windowMs, t.policy.MaxFailures, cooldownMs).Err()
		if err != nil {
			return fmt.Errorf("recording %s failure: %w", scope, err)
		}
	}
	return nil
}

// RecordSuccess clears the counters and locks for the succeeding request's
// own scopes: the identity and the source address it came from. Locks on
// other addresses (an attacker spraying from elsewhere) are untouched.
func (t *RedisAttemptTracker) RecordSuccess(ctx context.Context, identity, source string) error {
	keys := make([]string, 0, 4)
	if identity != "" {
		keys = append(keys, failKey("email", identity), lockKey("email", identity))
	}
	if source != "" {
		keys = append(keys, failKey("ip", source), lockKey("ip", source))
	}
	if len(keys) == 0 {
		return nil
	}
	if err := t.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("clearing failure counters: %w", err)
	}
	return nil
}

// IsLocked reports whether the identity scope or the source scope is
// currently locked out (OR semantics). Empty arguments skip that scope.
func (t *RedisAttemptTracker) IsLocked(ctx context.Context, identity, source string) (bool, error) {
	keys := make([]string, 0, 2)
	if identity != "" {
		keys = append(keys, lockKey("email", identity))
	}
	if source != "" {
		keys = append(keys, lockKey("ip", source))
	}
	if len(keys) == 0 {
		return false, nil
	}

	n, err := t.rdb.Exists(ctx, keys...).Result()
	if err != nil {
		return false, fmt.Errorf("checking lockout: %w", err)
	}
	return n > 0, nil
}
