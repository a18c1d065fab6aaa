package schema

// Source table names.
const (
	Transactions = "transactions"
	Customers    = "customers"
	Merchants    = "merchants"
	Categories   = "categories"
	Addresses    = "addresses"
	Cities       = "cities"
)

// TransactionsTable is the fact table; one analytics record per row.
var TransactionsTable = Table{
	Name: Transactions,
	Columns: []Column{
		{Name: "id", Type: Int},
		{Name: "trans_num", Type: Text, Nullable: true},
		{Name: "trans_date_trans_time", Type: Timestamp},
		{Name: "unix_time", Type: Int, Nullable: true},
		{Name: "amt", Type: Float, Nullable: true},
		{Name: "is_fraud", Type: Int, Nullable: true},
		{Name: "customer_id", Type: Int},
		{Name: "merchant_id", Type: Int},
	},
}

var CustomersTable = Table{
	Name: Customers,
	Columns: []Column{
		{Name: "id", Type: Int},
		{Name: "cc_num", Type: Text, Nullable: true},
		{Name: "first", Type: Text, Nullable: true},
		{Name: "last", Type: Text, Nullable: true},
		{Name: "gender", Type: Text, Nullable: true},
		{Name: "job", Type: Text, Nullable: true},
		// dob stays text; the transform parses it and tolerates garbage.
		{Name: "dob", Type: Text, Nullable: true},
		{Name: "address_id", Type: Int, Nullable: true},
	},
}

var MerchantsTable = Table{
	Name: Merchants,
	Columns: []Column{
		{Name: "id", Type: Int},
		{Name: "name", Type: Text, Nullable: true},
		{Name: "lat", Type: Float, Nullable: true},
		{Name: "long", Type: Float, Nullable: true},
		{Name: "category_id", Type: Int, Nullable: true},
	},
}

var CategoriesTable = Table{
	Name: Categories,
	Columns: []Column{
		{Name: "id", Type: Int},
		{Name: "category_name", Type: Text, Nullable: true},
	},
}

var AddressesTable = Table{
	Name: Addresses,
	Columns: []Column{
		{Name: "id", Type: Int},
		{Name: "street", Type: Text, Nullable: true},
		{Name: "zip", Type: Text, Nullable: true},
		{Name: "lat", Type: Float, Nullable: true},
		{Name: "long", Type: Float, Nullable: true},
		{Name: "city_id", Type: Int, Nullable: true},
	},
}

var CitiesTable = Table{
	Name: Cities,
	Columns: []Column{
		{Name: "id", Type: Int},
		{Name: "city", Type: Text, Nullable: true},
		{Name: "state", Type: Text, Nullable: true},
		{Name: "city_pop", Type: Int, Nullable: true},
	},
}

// SourceTables returns the six source tables in extraction order.
func SourceTables() []Table {
	return []Table{
		TransactionsTable,
		CustomersTable,
		MerchantsTable,
		CategoriesTable,
		AddressesTable,
		CitiesTable,
	}
}
