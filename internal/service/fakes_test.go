package service

import (
	"sync"
	"time"

	"go-retail-pos/internal/model"
	"go-retail-pos/internal/repository"

	"github.com/google/uuid"
)

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[uuid.UUID]*model.User
	err   error
}

func newFakeUserRepo(users ...*model.User) *fakeUserRepo {
	r := &fakeUserRepo{users: map[uuid.UUID]*model.User{}}
	for _, u := range users {
		if u.ID == uuid.Nil {
			u.ID = uuid.New()
		}
		r.users[u.ID] = u
	}
	return r
}

func (r *fakeUserRepo) FindByEmail(email string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			copied := *u
			return &copied, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (r *fakeUserRepo) FindByID(id uuid.UUID) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	copied := *u
	return &copied, nil
}

func (r *fakeUserRepo) Create(user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	copied := *user
	r.users[user.ID] = &copied
	return nil
}

func (r *fakeUserRepo) Update(user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.users[user.ID]
	if !ok {
		return repository.ErrUserNotFound
	}
	privileges := stored.Privileges
	copied := *user
	copied.Privileges = privileges
	r.users[user.ID] = &copied
	return nil
}

func (r *fakeUserRepo) Delete(id uuid.UUID, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; !ok {
		return repository.ErrUserNotFound
	}
	delete(r.users, id)
	return nil
}

func (r *fakeUserRepo) UpdatePassword(userID uuid.UUID, hashed string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return repository.ErrUserNotFound
	}
	u.Password = hashed
	return nil
}

func (r *fakeUserRepo) UpdatePrivileges(userID uuid.UUID, privileges []model.Privilege) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return repository.ErrUserNotFound
	}
	u.Privileges = append([]model.Privilege(nil), privileges...)
	return nil
}

func (r *fakeUserRepo) AddPrivilege(userID uuid.UUID, privilege *model.Privilege) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return repository.ErrUserNotFound
	}
	for _, p := range u.Privileges {
		if p.Code == privilege.Code {
			return nil
		}
	}
	u.Privileges = append(u.Privileges, *privilege)
	return nil
}

func (r *fakeUserRepo) RemovePrivilege(userID uuid.UUID, privilege *model.Privilege) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return repository.ErrPrivilegeNotAssigned
	}
	for i, p := range u.Privileges {
		if p.Code == privilege.Code {
			u.Privileges = append(u.Privileges[:i], u.Privileges[i+1:]...)
			return nil
		}
	}
	return repository.ErrPrivilegeNotAssigned
}

func (r *fakeUserRepo) FindAll(roleCode string) ([]model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.User
	for _, u := range r.users {
		if roleCode == "" || u.RoleCode() == roleCode {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (r *fakeUserRepo) CountActive() (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, u := range r.users {
		if u.IsActive {
			n++
		}
	}
	return n, nil
}

func (r *fakeUserRepo) UpdateTokenVersion(userID uuid.UUID, version string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return repository.ErrUserNotFound
	}
	u.TokenVersion = version
	return nil
}

func (r *fakeUserRepo) UpdateLastSeen(userID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return repository.ErrUserNotFound
	}
	now := time.Now()
	u.LastSeenAt = &now
	return nil
}

func (r *fakeUserRepo) get(id uuid.UUID) *model.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.users[id]
}

type fakePrivilegeRepo struct {
	privileges []model.Privilege
}

func newFakePrivilegeRepo() *fakePrivilegeRepo {
	r := &fakePrivilegeRepo{}
	for i, p := range model.DefaultPrivileges {
		p.ID = uint(i + 1)
		r.privileges = append(r.privileges, p)
	}
	return r
}

func (r *fakePrivilegeRepo) FindByCode(code string) (*model.Privilege, error) {
	for _, p := range r.privileges {
		if p.Code == code {
			p := p
			return &p, nil
		}
	}
	return nil, repository.ErrPrivilegeNotFound
}

func (r *fakePrivilegeRepo) FindByCodes(codes []string) ([]model.Privilege, error) {
	var out []model.Privilege
	for _, code := range codes {
		if p, err := r.FindByCode(code); err == nil {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (r *fakePrivilegeRepo) FindAll() ([]model.Privilege, error) { return r.privileges, nil }
func (r *fakePrivilegeRepo) SeedDefaults() error                 { return nil }

type fakeRoleRepo struct {
	roles []model.Role
}

func newFakeRoleRepo(privileges *fakePrivilegeRepo) *fakeRoleRepo {
	staffPrivileges, _ := privileges.FindByCodes(model.DefaultStaffPrivileges)
	return &fakeRoleRepo{roles: []model.Role{
		{ID: 1, Code: model.RoleAdmin, Name: "Administrator", Privileges: privileges.privileges},
		{ID: 2, Code: model.RoleStaff, Name: "Staff", Privileges: staffPrivileges},
	}}
}

func (r *fakeRoleRepo) FindAll() ([]model.Role, error) { return r.roles, nil }

func (r *fakeRoleRepo) FindByID(id uint) (*model.Role, error) {
	for _, role := range r.roles {
		if role.ID == id {
			role := role
			return &role, nil
		}
	}
	return nil, repository.ErrRoleNotFound
}

func (r *fakeRoleRepo) FindByCode(code string) (*model.Role, error) {
	for _, role := range r.roles {
		if role.Code == code {
			role := role
			return &role, nil
		}
	}
	return nil, repository.ErrRoleNotFound
}

func (r *fakeRoleRepo) ReplacePrivileges(*model.Role, []model.Privilege) error { return nil }
func (r *fakeRoleRepo) SeedDefaults() error                                    { return nil }

type fakeTransactionRepo struct {
	byStaff   []model.Transaction
	lastFrom  time.Time
	lastTo    time.Time
	lastLimit int
	lastSince time.Time
	lastYear  int
	threshold int
}

func (r *fakeTransactionRepo) FindAll() ([]model.Transaction, error) { return r.byStaff, nil }

func (r *fakeTransactionRepo) FindByID(id uuid.UUID) (*model.Transaction, error) {
	for i := range r.byStaff {
		if r.byStaff[i].ID == id {
			return &r.byStaff[i], nil
		}
	}
	return nil, repository.ErrTransactionNotFound
}

func (r *fakeTransactionRepo) FindByStaff(staffID uuid.UUID, start, end time.Time) ([]model.Transaction, error) {
	r.lastFrom, r.lastTo = start, end
	var out []model.Transaction
	for _, tx := range r.byStaff {
		if tx.StaffID == staffID {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (r *fakeTransactionRepo) GetDashboardStats(threshold int) (*repository.DashboardStats, error) {
	r.threshold = threshold
	return &repository.DashboardStats{}, nil
}

func (r *fakeTransactionRepo) GetMonthlySales(year int, _ *time.Location) ([]repository.MonthlySales, error) {
	r.lastYear = year
	return make([]repository.MonthlySales, 12), nil
}

func (r *fakeTransactionRepo) GetTopProducts(limit int) ([]repository.TopProduct, error) {
	r.lastLimit = limit
	return nil, nil
}

func (r *fakeTransactionRepo) GetSalesOverTime(since time.Time, _ *time.Location) ([]repository.DailySales, error) {
	r.lastSince = since
	return nil, nil
}

func (r *fakeTransactionRepo) GetStockLevels(threshold int) (*repository.StockLevels, error) {
	r.threshold = threshold
	return &repository.StockLevels{}, nil
}

type fakeActivityRepo struct {
	entries    []model.ActivityLog
	lastFilter repository.ActivityFilter
}

func (r *fakeActivityRepo) Create(entry *model.ActivityLog) error {
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *fakeActivityRepo) Find(filter repository.ActivityFilter) ([]model.ActivityLog, error) {
	r.lastFilter = filter
	return r.entries, nil
}

func (r *fakeActivityRepo) DistinctActions() ([]string, error)                { return nil, nil }
func (r *fakeActivityRepo) DistinctUsers() ([]repository.ActivityUser, error) { return nil, nil }
