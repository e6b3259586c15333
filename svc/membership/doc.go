// Package membership implements the subscription lifecycle for creator
// memberships: tiers and gateway-mirrored plans, the subscription state
// machine, the per-(creator, fan) membership aggregate, and the scheduled
// drift correction that advances subscriptions when the gateway stays
// silent.
//
// All status mutations happen inside a row-locked transaction via the
// Transactor; side effects that leave the process (emails, role syncs) go
// through the task enqueuer so the critical section never performs network
// calls beyond the gateway operations the transition itself requires.
package membership
