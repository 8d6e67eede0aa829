package plans

import "errors"

var (
	ErrFailedToLoadPlans = errors.New("failed to load plan catalog")
	ErrInvalidCatalog    = errors.New("invalid plan catalog configuration")
)
