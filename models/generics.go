package models

import (
	"context"
	"errors"

	"github.com/anejaagam/trazo-backend/utils"
)

type Resource interface {
	GetOrganizationId() string
}

// first find in redis, then in db, using ctx's organization_id in WHERE, cache result
// (may return RecordNotFound error)
func GetResource[T Resource](ctx context.Context, id int, associations ...string) (*T, error) {

	organizationId, ok := utils.GetOrganizationIdFromContext(ctx)
	if !ok || organizationId == "" {
		return nil, errors.New("organization id is required")
	}
	// find in redis
	result, err := utils.RetrieveRedis[T](id)
	if err != nil {
		return nil, err
	}
	// if not found in redis
	if result == nil {
		// fetch from db
		result, err = utils.FetchModel[T](ctx, organizationId, id, associations...)
		if err != nil {
			return nil, err
		}

		// store in redis
		if err := utils.StoreRedis[T](result, id); err != nil {
			return nil, err
		}
	} else {
		// if found in redis
		// check if organization ids match
		if (*result).GetOrganizationId() != organizationId {
			return nil, errors.New("cannot access resource owned by other organization")
		}
	}

	return result, nil
}
