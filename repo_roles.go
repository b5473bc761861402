package auth

import (
	"context"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

var SelectUserPermissionsSQL = `SELECT DISTINCT "prm"."name"
FROM "permissions" AS "prm"
JOIN "role_permissions" AS "rp" ON "rp"."permission_id" = "prm"."id"
JOIN "user_roles" AS "ur" ON "ur"."role_id" = "rp"."role_id"
WHERE "ur"."user_id" = ?
ORDER BY "prm"."name";`

type roles struct {
	db *bun.DB
}

var _ Roles = (*roles)(nil)

// NewRolesRepository returns the bun-backed Roles store
func NewRolesRepository(db *bun.DB) Roles {
	return &roles{db: db}
}

func (a *roles) GetByName(ctx context.Context, name string) (*Role, error) {
	return a.GetByNameTx(ctx, a.db, name)
}

func (a *roles) GetByNameTx(ctx context.Context, tx bun.IDB, name string) (*Role, error) {
	record := &Role{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.name = ?", name).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{"name": name})
		}
		return nil, err
	}

	return record, nil
}

func (a *roles) AssignTx(ctx context.Context, tx bun.IDB, userID, roleID uuid.UUID) error {
	assignment := &UserRoleAssignment{
		UserID: userID,
		RoleID: roleID,
	}

	// Re-assigning an already held role is a no-op.
	_, err := tx.NewInsert().
		Model(assignment).
		On("CONFLICT (user_id, role_id) DO NOTHING").
		Exec(ctx)

	return err
}

func (a *roles) RolesByUser(ctx context.Context, userID uuid.UUID) ([]string, error) {
	var names []string
	err := a.db.NewSelect().
		Model((*Role)(nil)).
		Column("rol.name").
		Join(`JOIN "user_roles" AS "ur" ON "ur"."role_id" = "rol"."id"`).
		Where(`"ur"."user_id" = ?`, userID).
		Order("rol.name").
		Scan(ctx, &names)

	if err != nil {
		return nil, err
	}

	return names, nil
}

func (a *roles) PermissionsByUser(ctx context.Context, userID uuid.UUID) ([]string, error) {
	var names []string
	err := a.db.NewRaw(SelectUserPermissionsSQL, userID).Scan(ctx, &names)
	if err != nil {
		return nil, err
	}

	return names, nil
}
