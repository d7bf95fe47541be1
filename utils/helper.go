package utils

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/anejaagam/trazo-backend/config"
	"github.com/bsm/redislock"
	"github.com/go-playground/validator/v10"
)

func NewTrue() *bool {
	b := true
	return &b
}

func NewFalse() *bool {
	b := false
	return &b
}

// ProcessValidationErrors flattens binding validation failures into a
// field -> failed-tag map suitable for a 400 response body.
func ProcessValidationErrors(err error) map[string]string {
	errorResponse := make(map[string]string)
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		errorResponse["body"] = err.Error()
		return errorResponse
	}
	for _, ve := range validationErrors {
		errorResponse[ve.Field()] = ve.Tag()
	}
	return errorResponse
}

func IsValidEmail(email string) bool {
	// Basic email validation regex pattern
	pattern := `^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`
	regex := regexp.MustCompile(pattern)
	return regex.MatchString(email)
}

func UniqueSlice[T comparable](values []T) []T {
	seen := make(map[T]bool, len(values))
	out := make([]T, 0, len(values))
	for _, v := range values {
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

// SiteLock obtains a best-effort distributed lock scoped to one site. It keeps
// overlapping sync invocations from interleaving; correctness does not depend on
// it (cache upserts are atomic on their unique keys).
func SiteLock(ctx context.Context, siteId int, lockType string, moduleName string, functionName string) (*redislock.Lock, error) {
	logger := config.GetLogger()
	locker := config.GetRedisLock()
	if locker == nil {
		// Avoid nil-pointer panics when Redis lock isn't initialized yet.
		return nil, nil
	}
	lockKey := fmt.Sprintf("%s:site:%d", lockType, siteId)
	lock, err := locker.Obtain(ctx, lockKey, 30*time.Second, nil)
	if err == redislock.ErrNotObtained {
		config.LogError(logger, moduleName, functionName, "Could not obtain lock for site", siteId, err)
		return nil, errors.New("another sync is already running for this site")
	} else if err != nil {
		config.LogError(logger, moduleName, functionName, "Error obtaining lock for site", siteId, err)
		return nil, err
	}
	return lock, nil
}
