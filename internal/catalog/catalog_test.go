package catalog

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/potooio/sentinel/internal/testutil"
)

const productsCSV = `SKU,product_name,quantity,EPC_range,barcode,weight,price
PRD_F_01,Munchee Chocolate Marie,120,E280-0001..E280-0120,4792024011348,400,540
PRD_F_02,Anchor Milk Powder,15,E280-0121..E280-0135,4792024011355,400.5,1150.00
PRD_BAD,Broken Row,many,,,1,1
`

const customersCSV = `Customer_ID,Name,Age,Address,TP
C001,Nimal Perera,34,12 Galle Rd,0771234567
C002,Kamala Silva,not-a-number,1 Main St,0770000000
`

func TestLoadProducts(t *testing.T) {
	c := New(zap.NewNop())
	require.NoError(t, c.LoadProducts(strings.NewReader(productsCSV)))

	assert.Equal(t, 2, c.ProductCount(), "unparseable rows are skipped")

	p, ok := c.Product("PRD_F_02")
	require.True(t, ok)
	assert.Equal(t, "Anchor Milk Powder", p.Name)
	assert.Equal(t, 15, p.Quantity)
	assert.Equal(t, 400.5, p.WeightG)
	assert.Equal(t, 1150.0, p.Price)
	assert.Equal(t, "4792024011355", p.Barcode)

	_, ok = c.Product("PRD_BAD")
	assert.False(t, ok)
	assert.Equal(t, []string{"PRD_F_01", "PRD_F_02"}, c.SKUs())
}

func TestLoadProducts_MissingColumn(t *testing.T) {
	c := New(zap.NewNop())
	err := c.LoadProducts(strings.NewReader("SKU,product_name\nA,B\n"))
	assert.ErrorIs(t, err, ErrMissingColumn)
}

func TestLoadProducts_Empty(t *testing.T) {
	c := New(zap.NewNop())
	require.NoError(t, c.LoadProducts(strings.NewReader("")))
	assert.Equal(t, 0, c.ProductCount())
}

func TestLoadCustomers(t *testing.T) {
	c := New(zap.NewNop())
	require.NoError(t, c.LoadCustomers(strings.NewReader(customersCSV)))

	cu, ok := c.Customer("C001")
	require.True(t, ok)
	assert.Equal(t, "Nimal Perera", cu.Name)
	assert.Equal(t, 34, cu.Age)
	assert.Equal(t, "0771234567", cu.Phone)

	_, ok = c.Customer("C002")
	assert.False(t, ok)
}

func TestLoad_MissingFilesLeaveCatalogEmpty(t *testing.T) {
	dir := t.TempDir()
	c := New(nil)

	err := c.Load(filepath.Join(dir, "products.csv"), filepath.Join(dir, "customers.csv"))
	require.NoError(t, err)
	assert.Equal(t, 0, c.ProductCount())
	assert.Equal(t, 0, c.CustomerCount())

	_, ok := c.Product("PRD_F_01")
	assert.False(t, ok)
}

func TestLoad_FromFiles(t *testing.T) {
	products := testutil.WriteFile(t, "products_list.csv", productsCSV)
	customers := testutil.WriteFile(t, "customer_data.csv", customersCSV)

	c := New(zap.NewNop())
	require.NoError(t, c.Load(products, customers))
	assert.Equal(t, 2, c.ProductCount())
	assert.Equal(t, 1, c.CustomerCount())
}

func TestLoad_MalformedTableIsAnError(t *testing.T) {
	products := testutil.WriteFile(t, "products_list.csv", "sku_only\nX\n")
	c := New(zap.NewNop())
	assert.ErrorIs(t, c.Load(products, ""), ErrMissingColumn)
}
