package reconcile

import (
	"github.com/google/uuid"
	"github.com/varunnayak/stripe-migrate/internal/platform"
)

var idempotencyNamespace = uuid.MustParse("6f1c1f52-93a4-4a4e-9d0b-5c2f7d0e8b31")

// IdempotencyKeys derives create idempotency keys that are stable for one run, so
// a transport-level retry of the same create cannot produce a second entity.
func IdempotencyKeys(runID string) func(kind platform.Kind, key string) string {
	return func(kind platform.Kind, key string) string {
		return uuid.NewSHA1(idempotencyNamespace, []byte(runID+"/"+string(kind)+"/"+key)).String()
	}
}
