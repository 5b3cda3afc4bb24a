package migration

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheGameKnave/angular-momentum-sub001/src/structstore"
)

func noopFlat(ctx context.Context, env *Env) error { return nil }

func noopStruct(ctx context.Context, h *structstore.Handle, tx *structstore.UpgradeTx) error {
	return nil
}

func TestRegistry_Validate(t *testing.T) {
	r := NewRegistry()
	r.AppendFlat(FlatMigration{Version: "20.1.0", Description: "a", Migrate: noopFlat})
	r.AppendFlat(FlatMigration{Version: "21.0.0", Description: "b", Migrate: noopFlat})
	r.AppendStructured(StructMigration{Version: 1, Description: "c", Migrate: noopStruct})
	r.AppendStructured(StructMigration{Version: 2, Description: "d", Migrate: noopStruct})

	require.NoError(t, r.Validate())
	assert.Equal(t, int64(2), r.CurrentStructVersion())
}

func TestRegistry_Validate_FlatOutOfOrder(t *testing.T) {
	r := NewRegistry()
	r.AppendFlat(FlatMigration{Version: "21.0.0", Migrate: noopFlat})
	r.AppendFlat(FlatMigration{Version: "20.1.0", Migrate: noopFlat})

	err := r.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRegistryOrder)
}

func TestRegistry_Validate_FlatDuplicate(t *testing.T) {
	r := NewRegistry()
	r.AppendFlat(FlatMigration{Version: "21.0.0", Migrate: noopFlat})
	r.AppendFlat(FlatMigration{Version: "21.0.0", Migrate: noopFlat})

	assert.ErrorIs(t, r.Validate(), ErrRegistryOrder)
}

func TestRegistry_Validate_InvalidSemver(t *testing.T) {
	r := NewRegistry()
	r.AppendFlat(FlatMigration{Version: "not-a-version", Migrate: noopFlat})

	assert.Error(t, r.Validate())
}

func TestRegistry_Validate_StructOutOfOrder(t *testing.T) {
	r := NewRegistry()
	r.AppendStructured(StructMigration{Version: 2, Migrate: noopStruct})
	r.AppendStructured(StructMigration{Version: 1, Migrate: noopStruct})

	assert.ErrorIs(t, r.Validate(), ErrRegistryOrder)
}

func TestRegistry_Validate_StructNonPositive(t *testing.T) {
	r := NewRegistry()
	r.AppendStructured(StructMigration{Version: 0, Migrate: noopStruct})

	assert.Error(t, r.Validate())
}

func TestRegistry_Validate_MissingMigrateFunc(t *testing.T) {
	r := NewRegistry()
	r.AppendFlat(FlatMigration{Version: "21.0.0"})

	assert.Error(t, r.Validate())
}

func TestRegistry_CurrentStructVersion_Empty(t *testing.T) {
	r := NewRegistry()
	assert.Equal(t, int64(0), r.CurrentStructVersion())
}

func TestRegistry_MustValidate_Panics(t *testing.T) {
	r := NewRegistry()
	r.AppendFlat(FlatMigration{Version: "bad", Migrate: noopFlat})

	assert.Panics(t, func() { r.MustValidate() })
}
