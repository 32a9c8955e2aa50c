package pgrepos

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	pkgerrors "github.com/pkg/errors"

	"github.com/celsofranciscano/innotech/core"
	"github.com/celsofranciscano/innotech/core/audit"
	"github.com/celsofranciscano/innotech/core/user"
)

const selectUsersQuery = `
	SELECT u.id, u.first_name, u.last_name, u.email, u.privilege_id, p.name AS role, u.is_active,
	       u.password_hash, u.created_at, u.updated_at, u.last_login
	FROM users u
	JOIN privileges p ON p.id = u.privilege_id`

var userOrderings = map[string]string{
	"id":        "u.id",
	"firstName": "u.first_name",
	"lastName":  "u.last_name",
	"email":     "u.email",
	"createdAt": "u.created_at",
	"lastLogin": "u.last_login",
}

type userRepository struct {
	db core.DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db core.DB) *userRepository {
	return &userRepository{db: db}
}

func (repo userRepository) CheckEmailUniqueness(ctx context.Context, email string, excludedIDs ...int) error {
	q := `SELECT EXISTS (SELECT 1 FROM users WHERE email = ?`
	args := []interface{}{email}
	if len(excludedIDs) > 0 {
		inQ, inArgs, err := sqlx.In(` AND id NOT IN (?)`, excludedIDs)
		if err != nil {
			return pkgerrors.Wrap(err, "binding excluded ids")
		}
		q += inQ
		args = append(args, inArgs...)
	}
	q += `)`

	var exists bool
	if err := repo.db.GetContext(ctx, &exists, repo.db.Rebind(q), args...); err != nil {
		return pkgerrors.Wrap(err, "checking email uniqueness")
	}
	if exists {
		return user.ErrEmailExists
	}
	return nil
}

func (repo userRepository) CreateUser(ctx context.Context, usr user.User, entry audit.Entry) (user.User, error) {
	q := `
		INSERT INTO users (first_name, last_name, email, privilege_id, is_active, password_hash, created_at, updated_at)
		VALUES (:first_name, :last_name, :email, :privilege_id, :is_active, :password_hash, :created_at, :updated_at)
		RETURNING id`

	err := runInTx(ctx, repo.db, func(tx core.DBExecutor) error {
		id, err := insertReturningID(ctx, tx, q, usr)
		if err != nil {
			if isUniqueViolation(err) {
				return user.ErrEmailExists
			}
			return pkgerrors.Wrap(err, "inserting user")
		}
		usr.ID = id
		return insertEntry(ctx, tx, entry, id)
	})
	if err != nil {
		return user.User{}, err
	}
	return usr, nil
}

func (repo userRepository) QueryUsers(ctx context.Context, filter *user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter != nil {
		// users with first name, last name or email matching the search keyword
		if filter.Search != "" {
			val := "%" + filter.Search + "%"
			where = append(where, "(u.first_name ILIKE ? OR u.last_name ILIKE ? OR u.email ILIKE ?)")
			args = append(args, val, val, val)
		}
		if filter.PrivilegeID > 0 {
			where = append(where, "u.privilege_id = ?")
			args = append(args, filter.PrivilegeID)
		}
		if filter.IsActive != nil {
			where = append(where, "u.is_active = ?")
			args = append(args, *filter.IsActive)
		}
	}

	q := selectUsersQuery
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY " + orderBy(ordering, userOrderings, "u.id ASC")

	users := make([]user.User, 0)
	if err := repo.db.SelectContext(ctx, &users, repo.db.Rebind(q), args...); err != nil {
		return nil, pkgerrors.Wrap(err, "querying users")
	}
	return users, nil
}

// orderBy renders ordering with the columns allowed by fields, falling back to def.
func orderBy(ordering []core.DBOrdering, fields map[string]string, def string) string {
	orderList := make([]string, 0, len(ordering))
	for _, ord := range ordering {
		if col, ok := fields[ord.Field]; ok {
			orderList = append(orderList, core.DBOrdering{Field: col, Ascending: ord.Ascending}.String())
		}
	}
	if len(orderList) == 0 {
		return def
	}
	return strings.Join(orderList, ", ")
}

func (repo userRepository) getUser(ctx context.Context, where string, arg interface{}) (user.User, error) {
	var usr user.User
	q := fmt.Sprintf("%s WHERE %s = $1", selectUsersQuery, where)
	if err := repo.db.GetContext(ctx, &usr, q, arg); err != nil {
		return user.User{}, trapNoRowsErr(err, user.ErrNotFound, "finding user")
	}
	return usr, nil
}

func (repo userRepository) GetUserByID(ctx context.Context, id int) (user.User, error) {
	return repo.getUser(ctx, "u.id", id)
}

func (repo userRepository) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	return repo.getUser(ctx, "u.email", email)
}

func (repo userRepository) UpdateUser(ctx context.Context, usr user.User, entry audit.Entry) (user.User, error) {
	q := `
		UPDATE users
		SET first_name = :first_name, last_name = :last_name, email = :email, privilege_id = :privilege_id,
		    is_active = :is_active, password_hash = :password_hash, updated_at = :updated_at
		WHERE id = :id`

	err := runInTx(ctx, repo.db, func(tx core.DBExecutor) error {
		if _, err := sqlx.NamedExecContext(ctx, tx, q, usr); err != nil {
			if isUniqueViolation(err) {
				return user.ErrEmailExists
			}
			return pkgerrors.Wrap(err, "updating user")
		}
		return insertEntry(ctx, tx, entry, usr.ID)
	})
	if err != nil {
		return user.User{}, err
	}
	return usr, nil
}

func (repo userRepository) SetLastLogin(ctx context.Context, id int, t time.Time) error {
	if _, err := repo.db.ExecContext(ctx, `UPDATE users SET last_login = $1 WHERE id = $2`, t, id); err != nil {
		return pkgerrors.Wrap(err, "setting last login")
	}
	return nil
}

// Privileges

func (repo userRepository) CreatePrivilege(ctx context.Context, priv user.Privilege, entry audit.Entry) (user.Privilege, error) {
	q := `
		INSERT INTO privileges (name, description, is_active, created_at, updated_at)
		VALUES (:name, :description, :is_active, :created_at, :updated_at)
		RETURNING id`

	err := runInTx(ctx, repo.db, func(tx core.DBExecutor) error {
		id, err := insertReturningID(ctx, tx, q, priv)
		if err != nil {
			if isUniqueViolation(err) {
				return user.ErrPrivilegeExists
			}
			return pkgerrors.Wrap(err, "inserting privilege")
		}
		priv.ID = id
		return insertEntry(ctx, tx, entry, id)
	})
	if err != nil {
		return user.Privilege{}, err
	}
	return priv, nil
}

func (repo userRepository) QueryPrivileges(ctx context.Context) ([]user.Privilege, error) {
	privileges := make([]user.Privilege, 0)
	if err := repo.db.SelectContext(ctx, &privileges, `SELECT * FROM privileges ORDER BY id`); err != nil {
		return nil, pkgerrors.Wrap(err, "querying privileges")
	}
	return privileges, nil
}

func (repo userRepository) GetPrivilegeByID(ctx context.Context, id int) (user.Privilege, error) {
	var priv user.Privilege
	if err := repo.db.GetContext(ctx, &priv, `SELECT * FROM privileges WHERE id = $1`, id); err != nil {
		return user.Privilege{}, trapNoRowsErr(err, user.ErrPrivilegeNotFound, "finding privilege")
	}
	return priv, nil
}

func (repo userRepository) GetPrivilegeByName(ctx context.Context, name user.Role) (user.Privilege, error) {
	var priv user.Privilege
	if err := repo.db.GetContext(ctx, &priv, `SELECT * FROM privileges WHERE name = $1`, string(name)); err != nil {
		return user.Privilege{}, trapNoRowsErr(err, user.ErrPrivilegeNotFound, "finding privilege")
	}
	return priv, nil
}

func (repo userRepository) UpdatePrivilege(ctx context.Context, priv user.Privilege, entry audit.Entry) (user.Privilege, error) {
	q := `
		UPDATE privileges
		SET name = :name, description = :description, is_active = :is_active, updated_at = :updated_at
		WHERE id = :id`

	err := runInTx(ctx, repo.db, func(tx core.DBExecutor) error {
		if _, err := sqlx.NamedExecContext(ctx, tx, q, priv); err != nil {
			if isUniqueViolation(err) {
				return user.ErrPrivilegeExists
			}
			return pkgerrors.Wrap(err, "updating privilege")
		}
		return insertEntry(ctx, tx, entry, priv.ID)
	})
	if err != nil {
		return user.Privilege{}, err
	}
	return priv, nil
}

// Devices

type deviceRepository struct {
	db core.DB
}

var _ user.DeviceRepository = (*deviceRepository)(nil) // interface compliance check

func NewDeviceRepository(db core.DB) *deviceRepository {
	return &deviceRepository{db: db}
}

func (repo deviceRepository) QueryDevices(ctx context.Context, userIDs ...int) ([]user.Device, error) {
	devices := make([]user.Device, 0)
	if len(userIDs) == 0 {
		return devices, nil
	}
	q, args, err := sqlx.In(`SELECT * FROM devices WHERE user_id IN (?) ORDER BY login_at DESC`, userIDs)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "binding user ids")
	}
	if err = repo.db.SelectContext(ctx, &devices, repo.db.Rebind(q), args...); err != nil {
		return nil, pkgerrors.Wrap(err, "querying devices")
	}
	return devices, nil
}

func (repo deviceRepository) GetDevice(ctx context.Context, id string) (user.Device, error) {
	var dev user.Device
	if err := repo.db.GetContext(ctx, &dev, `SELECT * FROM devices WHERE id::text = $1`, id); err != nil {
		return user.Device{}, trapNoRowsErr(err, user.ErrDeviceNotFound, "finding device")
	}
	return dev, nil
}

func (repo deviceRepository) CreateDevice(ctx context.Context, dev user.Device) (user.Device, error) {
	q := `
		INSERT INTO devices (id, user_id, type, brand, model, os, browser, ip, user_agent, login_at, logout_at, is_active)
		VALUES (:id, :user_id, :type, :brand, :model, :os, :browser, :ip, :user_agent, :login_at, :logout_at, :is_active)`
	if _, err := sqlx.NamedExecContext(ctx, repo.db, q, dev); err != nil {
		return user.Device{}, pkgerrors.Wrap(err, "inserting device")
	}
	return dev, nil
}

func (repo deviceRepository) UpdateDevice(ctx context.Context, dev user.Device) (user.Device, error) {
	q := `
		UPDATE devices
		SET ip = :ip, user_agent = :user_agent, login_at = :login_at, logout_at = :logout_at, is_active = :is_active
		WHERE id = :id`
	if _, err := sqlx.NamedExecContext(ctx, repo.db, q, dev); err != nil {
		return user.Device{}, pkgerrors.Wrap(err, "updating device")
	}
	return dev, nil
}
