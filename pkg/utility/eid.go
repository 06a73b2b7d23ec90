package utility

import (
	"github.com/google/uuid"
)

type ExecutionID = uuid.UUID

// executionNamespace scopes run ids so they never collide with other UUIDv5 users.
var executionNamespace = uuid.MustParse("6f2c8f64-3f0e-4c8e-9a55-2b7f0d1e9c41")

// NewExecutionID derives a stable id from the run inputs. Identical seeds
// produce identical ids, which keeps journals byte-identical across runs.
func NewExecutionID(seed string) ExecutionID {
	return uuid.NewSHA1(executionNamespace, []byte(seed))
}
