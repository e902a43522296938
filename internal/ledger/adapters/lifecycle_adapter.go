package adapters

import (
	"context"
	"errors"
	"fmt"

	"seedtrace/internal/ledger"
	"seedtrace/internal/lifecycle"
	"seedtrace/pkg/platform/sentinel"
)

// LifecycleSubjects resolves event subjects against the lot and plant store.
// It reads the store directly so the lifecycle service can depend on the
// ledger without a construction cycle.
type LifecycleSubjects struct {
	store lifecycle.Store
}

func NewLifecycleSubjects(store lifecycle.Store) *LifecycleSubjects {
	return &LifecycleSubjects{store: store}
}

func (a *LifecycleSubjects) SubjectExists(ctx context.Context, kind ledger.SubjectKind, id string) (bool, error) {
	var err error
	switch kind {
	case ledger.SubjectLot:
		_, err = a.store.FindLot(ctx, id)
	case ledger.SubjectPlant:
		_, err = a.store.FindPlant(ctx, id)
	default:
		return false, fmt.Errorf("unknown subject kind %q", kind)
	}
	if errors.Is(err, sentinel.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
