package registry

import "github.com/ovaphlow/pitchfork/service-backoffice/pkg/utilities"

// Entity names used outside the generic boundary.
const (
	Roles              = "roles"
	Users              = "users"
	Categories         = "categories"
	Units              = "units"
	Products           = "products"
	ProductImages      = "product_images"
	InventoryMovements = "inventory_movements"
	Suppliers          = "suppliers"
	PurchaseOrders     = "purchase_orders"
	PurchaseOrderLines = "purchase_order_lines"
	Customers          = "customers"
	PaymentMethods     = "payment_methods"
	Sales              = "sales"
	SaleLines          = "sale_lines"
	AccessAudit        = "access_audit"
	Settings           = "settings"
)

// Default returns the back-office entity table. Column lists mirror
// pkg/database/migrations.
func Default() *Registry {
	return MustNew(
		Descriptor{
			Name: Roles, Table: "roles", IDField: "id", SoftDeleteField: "active",
			Fields:     []string{"id", "name", "description", "created_at", "active"},
			Searchable: []string{"name", "description"},
			Immutable:  []string{"created_at"},
			AdminOnly:  true,
		},
		Descriptor{
			Name: Users, Table: "users", IDField: "id", SoftDeleteField: "active",
			Fields: []string{
				"id", "username", "password_hash", "full_name", "email", "role_id",
				"failed_attempts", "locked", "created_at", "last_access_at", "active", "avatar_url",
			},
			Searchable: []string{"username", "full_name", "email"},
			Immutable:  []string{"username", "created_at"},
			Protected:  []string{"password_hash", "failed_attempts", "locked", "last_access_at"},
			Hidden:     []string{"password_hash"},
			AdminOnly:  true,
			SoftOnly:   true,
		},
		Descriptor{
			Name: Categories, Table: "categories", IDField: "id", SoftDeleteField: "active",
			Fields:     []string{"id", "name", "description", "active"},
			Searchable: []string{"name", "description"},
		},
		Descriptor{
			Name: Units, Table: "units", IDField: "id", SoftDeleteField: "active",
			Fields:     []string{"id", "name", "abbreviation", "active"},
			Searchable: []string{"name", "abbreviation"},
		},
		Descriptor{
			Name: Products, Table: "products", IDField: "id", SoftDeleteField: "active",
			Fields: []string{
				"id", "barcode", "name", "description", "category_id", "unit_id",
				"cost_price", "sale_price", "stock", "min_stock", "max_stock",
				"expires_on", "lot", "location", "image_url", "created_at", "updated_at", "active",
			},
			Searchable:     []string{"name", "barcode", "description"},
			Immutable:      []string{"created_at"},
			UpdatedAtField: "updated_at",
			NonNegative:    []string{"cost_price", "sale_price", "stock", "min_stock", "max_stock"},
			Checks:         []Check{{Field: "sale_price", AtLeast: "cost_price"}},
			// stock only moves through the stock adjustment endpoint
			Protected: []string{"stock"},
		},
		Descriptor{
			Name: ProductImages, Table: "product_images", IDField: "id", SoftDeleteField: "active",
			Fields: []string{
				"id", "product_id", "image_url", "image_type", "image_name",
				"is_primary", "position", "uploaded_at", "active",
			},
			Searchable: []string{"image_name"},
			Immutable:  []string{"uploaded_at"},
		},
		Descriptor{
			Name: InventoryMovements, Table: "inventory_movements", IDField: "id",
			Fields: []string{
				"id", "product_id", "kind", "quantity", "stock_before", "stock_after",
				"reason", "user_id", "reference", "created_at",
			},
			Searchable: []string{"reason", "reference"},
			Immutable:  []string{"product_id", "kind", "quantity", "stock_before", "stock_after", "user_id", "created_at"},
			// movements are written by stock adjustments only
			AdminOnly: true,
			ReadOnly:  true,
		},
		Descriptor{
			Name: Suppliers, Table: "suppliers", IDField: "id", SoftDeleteField: "active",
			Fields: []string{
				"id", "name", "tax_id", "phone", "email", "address",
				"contact_name", "contact_phone", "created_at", "active",
			},
			Searchable: []string{"name", "tax_id", "contact_name", "email"},
			Immutable:  []string{"created_at"},
			SoftOnly:   true,
		},
		Descriptor{
			Name: PurchaseOrders, Table: "purchase_orders", IDField: "id",
			Fields: []string{
				"id", "number", "supplier_id", "ordered_at", "expected_on", "status",
				"subtotal", "tax", "total", "created_by", "notes",
			},
			Searchable:  []string{"number", "notes"},
			Immutable:   []string{"number", "ordered_at", "created_by"},
			Generated:   map[string]func() any{"number": func() any { return utilities.NewDocumentNumber("PO") }},
			NonNegative: []string{"subtotal", "tax", "total"},
		},
		Descriptor{
			Name: PurchaseOrderLines, Table: "purchase_order_lines", IDField: "id",
			Fields: []string{
				"id", "purchase_order_id", "product_id", "quantity", "unit_price",
				"subtotal", "received_quantity",
			},
			Immutable:   []string{"purchase_order_id"},
			NonNegative: []string{"quantity", "unit_price", "subtotal", "received_quantity"},
		},
		Descriptor{
			Name: Customers, Table: "customers", IDField: "id", SoftDeleteField: "active",
			Fields: []string{
				"id", "document_type", "document_number", "full_name", "phone",
				"email", "address", "created_at", "active",
			},
			Searchable: []string{"full_name", "document_number", "email", "phone"},
			Immutable:  []string{"created_at"},
		},
		Descriptor{
			Name: PaymentMethods, Table: "payment_methods", IDField: "id", SoftDeleteField: "active",
			Fields:     []string{"id", "name", "description", "active"},
			Searchable: []string{"name"},
		},
		Descriptor{
			Name: Sales, Table: "sales", IDField: "id",
			Fields: []string{
				"id", "number", "sold_at", "customer_id", "user_id", "subtotal",
				"discount", "tax", "total", "payment_method_id", "status", "notes",
			},
			Searchable:  []string{"number", "notes"},
			Immutable:   []string{"number", "sold_at", "user_id"},
			Generated:   map[string]func() any{"number": func() any { return utilities.NewDocumentNumber("SAL") }},
			NonNegative: []string{"subtotal", "discount", "tax", "total"},
		},
		Descriptor{
			Name: SaleLines, Table: "sale_lines", IDField: "id",
			Fields:      []string{"id", "sale_id", "product_id", "quantity", "unit_price", "discount", "subtotal"},
			Immutable:   []string{"sale_id"},
			NonNegative: []string{"quantity", "unit_price", "discount", "subtotal"},
		},
		Descriptor{
			Name: AccessAudit, Table: "access_audit", IDField: "id",
			Fields:     []string{"id", "user_id", "action", "success", "detail", "created_at"},
			Searchable: []string{"action", "detail"},
			Immutable:  []string{"user_id", "action", "success", "detail", "created_at"},
			AdminOnly:  true,
			ReadOnly:   true,
		},
		Descriptor{
			Name: Settings, Table: "settings", IDField: "id",
			Fields:         []string{"id", "key", "value", "description", "updated_at"},
			Searchable:     []string{"key", "description"},
			Immutable:      []string{"key"},
			UpdatedAtField: "updated_at",
			AdminOnly:      true,
		},
	)
}
