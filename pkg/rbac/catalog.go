// Package rbac holds the role to permission catalog shared by the API server
// and by UI clients. The catalog is built once from a versioned YAML document
// and never changes afterwards.
package rbac

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Role identifies a user's job function.
type Role string

// Permission names an allowed action on a resource.
type Permission string

const (
	RoleAdmin          Role = "admin"
	RoleInventoryClerk Role = "inventory_clerk"
	RoleLabStaff       Role = "lab_staff"
	RoleOrderAgent     Role = "order_agent"
	RoleViewer         Role = "viewer"
)

// Permissions referenced from Go code. Every one of them must be declared in
// the catalog document, otherwise Parse fails.
const (
	AccessHome            Permission = "access_home"
	ReadDashboard         Permission = "read_dashboard"
	ReadProducts          Permission = "read_products"
	WriteProducts         Permission = "write_products"
	ReadInventory         Permission = "read_inventory"
	WriteInventory        Permission = "write_inventory"
	CountInventory        Permission = "count_inventory"
	ReadStockLedger       Permission = "read_stock_ledger"
	ReadPurchaseOrders    Permission = "read_purchase_orders"
	WritePurchaseOrders   Permission = "write_purchase_orders"
	ApprovePurchaseOrders Permission = "approve_purchase_orders"
	ReadGoodsReceipts     Permission = "read_goods_receipts"
	WriteGoodsReceipts    Permission = "write_goods_receipts"
	ReadInvoices          Permission = "read_invoices"
	WriteInvoices         Permission = "write_invoices"
	ReadExpenses          Permission = "read_expenses"
	WriteExpenses         Permission = "write_expenses"
	ReadUsers             Permission = "read_users"
	WriteUsers            Permission = "write_users"
	ReadAuditLogs         Permission = "read_audit_logs"
)

var referencedPermissions = []Permission{
	AccessHome, ReadDashboard, ReadProducts, WriteProducts,
	ReadInventory, WriteInventory, CountInventory, ReadStockLedger,
	ReadPurchaseOrders, WritePurchaseOrders, ApprovePurchaseOrders,
	ReadGoodsReceipts, WriteGoodsReceipts, ReadInvoices, WriteInvoices,
	ReadExpenses, WriteExpenses, ReadUsers, WriteUsers, ReadAuditLogs,
}

//go:embed catalog.yaml
var defaultDocument []byte

// ErrInvalidCatalog is returned for documents that fail validation.
var ErrInvalidCatalog = errors.New("invalid permission catalog")

// PermissionDef describes one permission in the catalog document.
type PermissionDef struct {
	Code        Permission `yaml:"code" json:"code"`
	Group       string     `yaml:"group" json:"group"`
	Description string     `yaml:"description" json:"description"`
}

// RoleDef describes one role in the catalog document. Superuser roles hold
// every declared permission and must not list any by hand.
type RoleDef struct {
	Name        Role         `yaml:"name" json:"name"`
	Description string       `yaml:"description" json:"description"`
	Superuser   bool         `yaml:"superuser,omitempty" json:"superuser,omitempty"`
	Permissions []Permission `yaml:"permissions,omitempty" json:"permissions,omitempty"`
}

// Document is the serialized form of the catalog. The YAML and JSON field
// names are identical so a JSON copy served over HTTP parses with Parse too.
type Document struct {
	Version     string          `yaml:"version" json:"version"`
	Permissions []PermissionDef `yaml:"permissions" json:"permissions"`
	Roles       []RoleDef       `yaml:"roles" json:"roles"`
}

// Catalog is the resolved, read-only role to permission table.
type Catalog struct {
	doc   Document
	perms []Permission
	roles map[Role]map[Permission]struct{}
	order []Role
}

var defaultCatalog *Catalog

func init() {
	c, err := Parse(defaultDocument)
	if err != nil {
		panic(fmt.Sprintf("rbac: embedded catalog: %v", err))
	}
	defaultCatalog = c
}

// Default returns the catalog compiled into the binary.
func Default() *Catalog {
	return defaultCatalog
}

// LoadFile reads and parses a catalog document from disk.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	return Parse(data)
}

// Parse builds a Catalog from a YAML (or JSON) document.
func Parse(data []byte) (*Catalog, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}
	return FromDocument(doc)
}

// FromDocument validates doc and resolves every role's permission set.
func FromDocument(doc Document) (*Catalog, error) {
	if strings.TrimSpace(doc.Version) == "" {
		return nil, fmt.Errorf("%w: version is required", ErrInvalidCatalog)
	}

	declared := make(map[Permission]struct{}, len(doc.Permissions))
	perms := make([]Permission, 0, len(doc.Permissions))
	for _, p := range doc.Permissions {
		if strings.TrimSpace(string(p.Code)) == "" {
			return nil, fmt.Errorf("%w: permission with empty code", ErrInvalidCatalog)
		}
		if _, dup := declared[p.Code]; dup {
			return nil, fmt.Errorf("%w: duplicate permission %q", ErrInvalidCatalog, p.Code)
		}
		declared[p.Code] = struct{}{}
		perms = append(perms, p.Code)
	}
	sort.Slice(perms, func(i, j int) bool { return perms[i] < perms[j] })

	for _, p := range referencedPermissions {
		if _, ok := declared[p]; !ok {
			return nil, fmt.Errorf("%w: permission %q is used by the server but not declared", ErrInvalidCatalog, p)
		}
	}

	roles := make(map[Role]map[Permission]struct{}, len(doc.Roles))
	order := make([]Role, 0, len(doc.Roles))
	for _, r := range doc.Roles {
		if strings.TrimSpace(string(r.Name)) == "" {
			return nil, fmt.Errorf("%w: role with empty name", ErrInvalidCatalog)
		}
		if _, dup := roles[r.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate role %q", ErrInvalidCatalog, r.Name)
		}

		set := make(map[Permission]struct{})
		if r.Superuser {
			if len(r.Permissions) > 0 {
				return nil, fmt.Errorf("%w: superuser role %q must not list permissions", ErrInvalidCatalog, r.Name)
			}
			for _, p := range perms {
				set[p] = struct{}{}
			}
		} else {
			for _, p := range r.Permissions {
				if _, ok := declared[p]; !ok {
					return nil, fmt.Errorf("%w: role %q grants undeclared permission %q", ErrInvalidCatalog, r.Name, p)
				}
				set[p] = struct{}{}
			}
		}
		roles[r.Name] = set
		order = append(order, r.Name)
	}

	admin, ok := doc.roleDef(RoleAdmin)
	if !ok {
		return nil, fmt.Errorf("%w: role %q is required", ErrInvalidCatalog, RoleAdmin)
	}
	if !admin.Superuser {
		return nil, fmt.Errorf("%w: role %q must be a superuser", ErrInvalidCatalog, RoleAdmin)
	}

	return &Catalog{doc: doc, perms: perms, roles: roles, order: order}, nil
}

func (d Document) roleDef(name Role) (RoleDef, bool) {
	for _, r := range d.Roles {
		if r.Name == name {
			return r, true
		}
	}
	return RoleDef{}, false
}

// Version returns the catalog document version.
func (c *Catalog) Version() string {
	if c == nil {
		return ""
	}
	return c.doc.Version
}

// Document returns the document the catalog was built from, with superuser
// roles left unexpanded.
func (c *Catalog) Document() Document {
	if c == nil {
		return Document{}
	}
	return c.doc
}

// AllPermissions returns every declared permission, sorted.
func (c *Catalog) AllPermissions() []Permission {
	if c == nil {
		return nil
	}
	out := make([]Permission, len(c.perms))
	copy(out, c.perms)
	return out
}

// Roles returns the declared roles in document order.
func (c *Catalog) Roles() []Role {
	if c == nil {
		return nil
	}
	out := make([]Role, len(c.order))
	copy(out, c.order)
	return out
}

// HasRole reports whether role is declared.
func (c *Catalog) HasRole(role Role) bool {
	if c == nil {
		return false
	}
	_, ok := c.roles[role]
	return ok
}

// Permissions returns the sorted permission set of role. Unknown roles get an
// empty, non-nil slice.
func (c *Catalog) Permissions(role Role) []Permission {
	out := []Permission{}
	if c == nil {
		return out
	}
	for p := range c.roles[role] {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
