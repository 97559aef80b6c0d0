package config

import (
	"fmt"
	"strings"
)

const (
	PoolingPooler = "pooler"
	PoolingCLS    = "cls"
	PoolingMean   = "mean"
)

func NormalizePooling(raw string) (string, error) {
	pooling := strings.ToLower(strings.TrimSpace(raw))
	if pooling == "" {
		pooling = PoolingPooler
	}

	switch pooling {
	case PoolingPooler, PoolingCLS, PoolingMean:
		return pooling, nil
	case "pooler_output", "pooled":
		return PoolingPooler, nil
	case "first":
		return PoolingCLS, nil
	case "average", "avg":
		return PoolingMean, nil
	default:
		return "", fmt.Errorf(
			"invalid pooling %q (expected %s|%s|%s)",
			raw,
			PoolingPooler,
			PoolingCLS,
			PoolingMean,
		)
	}
}
