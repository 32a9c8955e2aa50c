package inmemdb

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/celsofranciscano/innotech/core"
	"github.com/celsofranciscano/innotech/core/audit"
	"github.com/celsofranciscano/innotech/core/user"
)

type userRepository struct {
	db *DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *DB) *userRepository {
	return &userRepository{db: db}
}

// withRole fills the privilege name, as the SQL join does.
func (repo userRepository) withRole(usr user.User) user.User {
	usr.Role = repo.db.privileges[usr.PrivilegeID].Name
	return usr
}

func (repo userRepository) emailTaken(email string, excludedIDs ...int) bool {
	for _, usr := range repo.db.users {
		if usr.Email != email {
			continue
		}
		excluded := false
		for _, id := range excludedIDs {
			if usr.ID == id {
				excluded = true
				break
			}
		}
		if !excluded {
			return true
		}
	}
	return false
}

func (repo userRepository) CheckEmailUniqueness(_ context.Context, email string, excludedIDs ...int) error {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if repo.emailTaken(email, excludedIDs...) {
		return user.ErrEmailExists
	}
	return nil
}

func (repo userRepository) CreateUser(_ context.Context, usr user.User, entry audit.Entry) (user.User, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if repo.emailTaken(usr.Email) {
		return user.User{}, user.ErrEmailExists
	}
	usr.ID = repo.db.nextID("users")
	usr.IsOnline = false
	repo.db.users[usr.ID] = usr
	repo.db.record(entry, usr.ID)
	return repo.withRole(usr), nil
}

func (repo userRepository) QueryUsers(_ context.Context, filter *user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	users := make([]user.User, 0, len(repo.db.users))
	for _, usr := range repo.db.users {
		if filter != nil {
			if filter.Search != "" {
				s := strings.ToLower(filter.Search)
				if !strings.Contains(strings.ToLower(usr.FirstName), s) &&
					!strings.Contains(strings.ToLower(usr.LastName), s) &&
					!strings.Contains(strings.ToLower(usr.Email), s) {
					continue
				}
			}
			if filter.PrivilegeID > 0 && usr.PrivilegeID != filter.PrivilegeID {
				continue
			}
			if filter.IsActive != nil && usr.IsActive != *filter.IsActive {
				continue
			}
		}
		users = append(users, repo.withRole(usr))
	}

	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	for k := len(ordering) - 1; k >= 0; k-- {
		ord := ordering[k]
		less := userLess(ord.Field)
		if less == nil {
			continue
		}
		sort.SliceStable(users, func(i, j int) bool {
			if ord.Ascending {
				return less(users[i], users[j])
			}
			return less(users[j], users[i])
		})
	}
	return users, nil
}

func userLess(field string) func(a, b user.User) bool {
	switch field {
	case "id":
		return func(a, b user.User) bool { return a.ID < b.ID }
	case "firstName":
		return func(a, b user.User) bool { return a.FirstName < b.FirstName }
	case "lastName":
		return func(a, b user.User) bool { return a.LastName < b.LastName }
	case "email":
		return func(a, b user.User) bool { return a.Email < b.Email }
	case "createdAt":
		return func(a, b user.User) bool { return a.CreatedAt.Before(b.CreatedAt) }
	case "lastLogin":
		return func(a, b user.User) bool { return a.LastLogin.Time.Before(b.LastLogin.Time) }
	}
	return nil
}

func (repo userRepository) GetUserByID(_ context.Context, id int) (user.User, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if usr, ok := repo.db.users[id]; ok {
		return repo.withRole(usr), nil
	}
	return user.User{}, user.ErrNotFound
}

func (repo userRepository) GetUserByEmail(_ context.Context, email string) (user.User, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, usr := range repo.db.users {
		if usr.Email == email {
			return repo.withRole(usr), nil
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo userRepository) UpdateUser(_ context.Context, usr user.User, entry audit.Entry) (user.User, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	orig, ok := repo.db.users[usr.ID]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	if repo.emailTaken(usr.Email, usr.ID) {
		return user.User{}, user.ErrEmailExists
	}
	usr.LastLogin = orig.LastLogin
	usr.IsOnline = false
	repo.db.users[usr.ID] = usr
	repo.db.record(entry, usr.ID)
	return repo.withRole(usr), nil
}

func (repo userRepository) SetLastLogin(_ context.Context, id int, t time.Time) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	usr, ok := repo.db.users[id]
	if !ok {
		return user.ErrNotFound
	}
	usr.LastLogin = null.TimeFrom(t)
	repo.db.users[id] = usr
	return nil
}

// Privileges

func (repo userRepository) privilegeNameTaken(name user.Role, excludedID int) bool {
	for _, p := range repo.db.privileges {
		if p.Name == name && p.ID != excludedID {
			return true
		}
	}
	return false
}

func (repo userRepository) CreatePrivilege(_ context.Context, priv user.Privilege, entry audit.Entry) (user.Privilege, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if repo.privilegeNameTaken(priv.Name, 0) {
		return user.Privilege{}, user.ErrPrivilegeExists
	}
	priv.ID = repo.db.nextID("privileges")
	repo.db.privileges[priv.ID] = priv
	repo.db.record(entry, priv.ID)
	return priv, nil
}

func (repo userRepository) QueryPrivileges(_ context.Context) ([]user.Privilege, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	privileges := make([]user.Privilege, 0, len(repo.db.privileges))
	for _, p := range repo.db.privileges {
		privileges = append(privileges, p)
	}
	sort.Slice(privileges, func(i, j int) bool { return privileges[i].ID < privileges[j].ID })
	return privileges, nil
}

func (repo userRepository) GetPrivilegeByID(_ context.Context, id int) (user.Privilege, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if p, ok := repo.db.privileges[id]; ok {
		return p, nil
	}
	return user.Privilege{}, user.ErrPrivilegeNotFound
}

func (repo userRepository) GetPrivilegeByName(_ context.Context, name user.Role) (user.Privilege, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, p := range repo.db.privileges {
		if p.Name == name {
			return p, nil
		}
	}
	return user.Privilege{}, user.ErrPrivilegeNotFound
}

func (repo userRepository) UpdatePrivilege(_ context.Context, priv user.Privilege, entry audit.Entry) (user.Privilege, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.privileges[priv.ID]; !ok {
		return user.Privilege{}, user.ErrPrivilegeNotFound
	}
	if repo.privilegeNameTaken(priv.Name, priv.ID) {
		return user.Privilege{}, user.ErrPrivilegeExists
	}
	repo.db.privileges[priv.ID] = priv
	repo.db.record(entry, priv.ID)
	return priv, nil
}

// Devices

type deviceRepository struct {
	db *DB
}

var _ user.DeviceRepository = (*deviceRepository)(nil) // interface compliance check

func NewDeviceRepository(db *DB) *deviceRepository {
	return &deviceRepository{db: db}
}

func (repo deviceRepository) QueryDevices(_ context.Context, userIDs ...int) ([]user.Device, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	wanted := make(map[int]bool, len(userIDs))
	for _, id := range userIDs {
		wanted[id] = true
	}
	devices := make([]user.Device, 0)
	for _, dev := range repo.db.devices {
		if wanted[dev.UserID] {
			devices = append(devices, dev)
		}
	}
	sort.Slice(devices, func(i, j int) bool { return devices[i].LoginAt.After(devices[j].LoginAt) })
	return devices, nil
}

func (repo deviceRepository) GetDevice(_ context.Context, id string) (user.Device, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if dev, ok := repo.db.devices[id]; ok {
		return dev, nil
	}
	return user.Device{}, user.ErrDeviceNotFound
}

func (repo deviceRepository) CreateDevice(_ context.Context, dev user.Device) (user.Device, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	repo.db.devices[dev.ID] = dev
	return dev, nil
}

func (repo deviceRepository) UpdateDevice(_ context.Context, dev user.Device) (user.Device, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.devices[dev.ID]; !ok {
		return user.Device{}, user.ErrDeviceNotFound
	}
	repo.db.devices[dev.ID] = dev
	return dev, nil
}

// DeleteDevice removes a session record, as an administrator purging sessions would.
func (repo deviceRepository) DeleteDevice(_ context.Context, id string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	delete(repo.db.devices, id)
	return nil
}
