package model

// Privilege represents a permission that can be assigned to users
type Privilege struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Code string `gorm:"type:varchar(50);uniqueIndex;not null" json:"code"` // e.g., "make_sales"
	Name string `gorm:"type:varchar(100)" json:"name"`
}

const (
	PrivViewProducts      = "view_products"
	PrivEditProducts      = "edit_products"
	PrivViewTransactions  = "view_transactions"
	PrivMakeSales         = "make_sales"
	PrivViewUsers         = "view_users"
	PrivManageStaff       = "manage_staff"
	PrivAssignPermissions = "assign_permissions"
	PrivViewActivity      = "view_activity"
)

// Default privileges for the system
var DefaultPrivileges = []Privilege{
	{Code: PrivViewProducts, Name: "View Products"},
	{Code: PrivEditProducts, Name: "Create, Update and Delete Products"},
	{Code: PrivViewTransactions, Name: "View Transactions"},
	{Code: PrivMakeSales, Name: "Make Sales"},
	{Code: PrivViewUsers, Name: "View Users"},
	{Code: PrivManageStaff, Name: "Manage Staff Accounts"},
	{Code: PrivAssignPermissions, Name: "Assign Permissions"},
	{Code: PrivViewActivity, Name: "View Activity Logs"},
}

// DefaultStaffPrivileges are granted to the STAFF role on first seed.
var DefaultStaffPrivileges = []string{PrivViewProducts, PrivMakeSales}
