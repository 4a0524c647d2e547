package cache

import (
	"fmt"

	"github.com/google/uuid"
)

func JobStatusKey(jobID uuid.UUID) string {
	return fmt.Sprintf("job:%s", jobID)
}

func RateLimitKey(keyPrefix string) string {
	return fmt.Sprintf("ratelimit:%s", keyPrefix)
}

// ProfileHashKey caches the most recent analysis-log id for a profile hash,
// making audit writes idempotent per trigger event.
func ProfileHashKey(userID uuid.UUID, profileHash string) string {
	return fmt.Sprintf("profile:%s:%s", userID, profileHash)
}
