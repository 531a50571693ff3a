// Package catalog loads the product and customer reference tables that the
// detection rules consult for expected prices, weights and quantities.
package catalog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/potooio/sentinel/internal/types"
)

var (
	// ErrMissingColumn is returned when a required CSV header is absent.
	ErrMissingColumn = errors.New("missing required column")
)

var (
	productColumns  = []string{"SKU", "product_name", "quantity", "EPC_range", "barcode", "weight", "price"}
	customerColumns = []string{"Customer_ID", "Name", "Age", "Address", "TP"}
)

// Catalog is a read-mostly, concurrent-safe reference table.
type Catalog struct {
	logger *zap.Logger

	mu        sync.RWMutex
	products  map[string]types.Product
	customers map[string]types.Customer
}

// New creates an empty Catalog.
func New(logger *zap.Logger) *Catalog {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Catalog{
		logger:    logger.Named("catalog"),
		products:  make(map[string]types.Product),
		customers: make(map[string]types.Customer),
	}
}

// Load reads both tables. A missing file leaves that table empty and is
// logged; any other error is returned.
func (c *Catalog) Load(productsPath, customersPath string) error {
	if err := c.LoadProductsFile(productsPath); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		c.logger.Warn("Products table not found, price and weight rules will find nothing",
			zap.String("path", productsPath))
	}
	if err := c.LoadCustomersFile(customersPath); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		c.logger.Warn("Customers table not found", zap.String("path", customersPath))
	}
	c.logger.Info("Reference data loaded",
		zap.Int("products", c.ProductCount()),
		zap.Int("customers", c.CustomerCount()))
	return nil
}

// LoadProductsFile reads the products CSV at path.
func (c *Catalog) LoadProductsFile(path string) error {
	if path == "" {
		return fmt.Errorf("products table: %w", fs.ErrNotExist)
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening products table: %w", err)
	}
	defer f.Close()
	return c.LoadProducts(f)
}

// LoadCustomersFile reads the customers CSV at path.
func (c *Catalog) LoadCustomersFile(path string) error {
	if path == "" {
		return fmt.Errorf("customers table: %w", fs.ErrNotExist)
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening customers table: %w", err)
	}
	defer f.Close()
	return c.LoadCustomers(f)
}

// LoadProducts parses a products CSV. Rows that fail to parse are skipped
// with a warning.
func (c *Catalog) LoadProducts(r io.Reader) error {
	rows, err := readTable(r, productColumns)
	if err != nil {
		return fmt.Errorf("products table: %w", err)
	}

	loaded := make(map[string]types.Product, len(rows))
	for i, row := range rows {
		p, err := parseProduct(row)
		if err != nil {
			c.logger.Warn("Skipping product row", zap.Int("row", i+2), zap.Error(err))
			continue
		}
		loaded[p.SKU] = p
	}

	c.mu.Lock()
	for sku, p := range loaded {
		c.products[sku] = p
	}
	c.mu.Unlock()
	return nil
}

// LoadCustomers parses a customers CSV. Rows that fail to parse are skipped
// with a warning.
func (c *Catalog) LoadCustomers(r io.Reader) error {
	rows, err := readTable(r, customerColumns)
	if err != nil {
		return fmt.Errorf("customers table: %w", err)
	}

	loaded := make(map[string]types.Customer, len(rows))
	for i, row := range rows {
		cu, err := parseCustomer(row)
		if err != nil {
			c.logger.Warn("Skipping customer row", zap.Int("row", i+2), zap.Error(err))
			continue
		}
		loaded[cu.ID] = cu
	}

	c.mu.Lock()
	for id, cu := range loaded {
		c.customers[id] = cu
	}
	c.mu.Unlock()
	return nil
}

// Product looks up a product by SKU.
func (c *Catalog) Product(sku string) (types.Product, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.products[sku]
	return p, ok
}

// Customer looks up a customer by id.
func (c *Catalog) Customer(id string) (types.Customer, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cu, ok := c.customers[id]
	return cu, ok
}

// SKUs returns every product SKU, sorted.
func (c *Catalog) SKUs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.products))
	for sku := range c.products {
		out = append(out, sku)
	}
	sort.Strings(out)
	return out
}

// ProductCount returns the number of loaded products.
func (c *Catalog) ProductCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.products)
}

// CustomerCount returns the number of loaded customers.
func (c *Catalog) CustomerCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.customers)
}

var _ types.CatalogReader = (*Catalog)(nil)

// readTable returns the data rows of a headed CSV as column-name maps.
func readTable(r io.Reader, required []string) ([]map[string]string, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))] = i
	}
	for _, col := range required {
		if _, ok := index[col]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, col)
		}
	}

	var rows []map[string]string
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading row: %w", err)
		}
		row := make(map[string]string, len(index))
		for name, i := range index {
			if i < len(record) {
				row[name] = strings.TrimSpace(record[i])
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func parseProduct(row map[string]string) (types.Product, error) {
	sku := row["SKU"]
	if sku == "" {
		return types.Product{}, errors.New("empty SKU")
	}
	qty, err := strconv.Atoi(row["quantity"])
	if err != nil {
		return types.Product{}, fmt.Errorf("quantity for %s: %w", sku, err)
	}
	weight, err := strconv.ParseFloat(row["weight"], 64)
	if err != nil {
		return types.Product{}, fmt.Errorf("weight for %s: %w", sku, err)
	}
	price, err := strconv.ParseFloat(row["price"], 64)
	if err != nil {
		return types.Product{}, fmt.Errorf("price for %s: %w", sku, err)
	}
	return types.Product{
		SKU:      sku,
		Name:     row["product_name"],
		Quantity: qty,
		EPCRange: row["EPC_range"],
		Barcode:  row["barcode"],
		WeightG:  weight,
		Price:    price,
	}, nil
}

func parseCustomer(row map[string]string) (types.Customer, error) {
	id := row["Customer_ID"]
	if id == "" {
		return types.Customer{}, errors.New("empty Customer_ID")
	}
	age, err := strconv.Atoi(row["Age"])
	if err != nil {
		return types.Customer{}, fmt.Errorf("age for %s: %w", id, err)
	}
	return types.Customer{
		ID:      id,
		Name:    row["Name"],
		Age:     age,
		Address: row["Address"],
		Phone:   row["TP"],
	}, nil
}
