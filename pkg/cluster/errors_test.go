package cluster

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/runtime/schema"

	"syncwarden/pkg/resource"
)

func TestClassify(t *testing.T) {
	gr := schema.GroupResource{Resource: "configmaps"}
	id := resource.Identity{Kind: resource.KindConfigMap, Namespace: "default", Name: "app"}

	tests := []struct {
		name string
		err  error
		want ErrorClass
	}{
		{"conflict", apierrors.NewConflict(gr, "app", errors.New("stale")), ClassConflict},
		{"already exists", apierrors.NewAlreadyExists(gr, "app"), ClassConflict},
		{"not found", apierrors.NewNotFound(gr, "app"), ClassConflict},
		{"forbidden", apierrors.NewForbidden(gr, "app", errors.New("rbac")), ClassPermanent},
		{"unauthorized", apierrors.NewUnauthorized("token expired"), ClassPermanent},
		{"bad request", apierrors.NewBadRequest("malformed"), ClassPermanent},
		{"unsupported kind", fmt.Errorf("load: %w", resource.ErrUnsupportedKind), ClassPermanent},
		{"timeout", apierrors.NewTimeoutError("slow", 1), ClassTransient},
		{"server error", apierrors.NewInternalError(errors.New("boom")), ClassTransient},
		{"plain error", errors.New("connection reset by peer"), ClassTransient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			classified := Classify("update", id, tt.err)
			assert.Equal(t, tt.want, ClassOf(classified))
			assert.ErrorIs(t, classified, tt.err)
		})
	}
}

func TestClassify_KeepsTypedErrors(t *testing.T) {
	id := resource.Identity{Kind: resource.KindSecret, Namespace: "default", Name: "s"}
	original := &PermanentError{Op: "create", ID: id, Err: errors.New("invalid")}

	wrapped := fmt.Errorf("apply: %w", original)

	assert.Same(t, wrapped, Classify("update", id, wrapped))
	assert.True(t, IsPermanent(wrapped))
	assert.False(t, IsTransient(wrapped))
	assert.Nil(t, Classify("update", id, nil))
}

func TestErrorClass_String(t *testing.T) {
	assert.Equal(t, "transient", ClassTransient.String())
	assert.Equal(t, "conflict", ClassConflict.String())
	assert.Equal(t, "permanent", ClassPermanent.String())
}
