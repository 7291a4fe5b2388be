package storage

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"pricecompare/models"
)

var csvHeader = []string{
	"base_model", "country", "domain", "currency", "title", "link",
	"price", "price_eur", "image_url", "best_price",
}

// CSVWriter writes grouped products as flat CSV rows, one per product.
// It is safe for concurrent use.
type CSVWriter struct {
	mu     sync.Mutex
	closer io.Closer
	writer *csv.Writer
}

// NewCSVWriter writes the header row to w and returns a writer for it.
func NewCSVWriter(w io.Writer) (*CSVWriter, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return nil, fmt.Errorf("csv: write header: %w", err)
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return nil, fmt.Errorf("csv: write header: %w", err)
	}
	return &CSVWriter{writer: cw}, nil
}

// CreateCSVFile creates (or truncates) the CSV file at path and writes the
// header row. Intermediate directories are created automatically.
func CreateCSVFile(path string) (*CSVWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("csv: create output dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("csv: create file %q: %w", path, err)
	}

	w, err := NewCSVWriter(f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	w.closer = f
	return w, nil
}

// WriteGroups appends one row per product, in group order.
func (c *CSVWriter) WriteGroups(groups []*models.ProductGroup) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, g := range groups {
		if g == nil {
			continue
		}
		for _, p := range g.Products {
			row := []string{
				g.BaseModel,
				p.Country,
				p.Domain,
				p.Currency,
				p.Title,
				p.Link,
				formatPrice(p.Price),
				formatPrice(p.ReferencePrice),
				p.Image(),
				strconv.FormatBool(p.IsBestPrice),
			}
			if err := c.writer.Write(row); err != nil {
				return fmt.Errorf("csv: write row: %w", err)
			}
		}
	}

	c.writer.Flush()
	return c.writer.Error()
}

// Close flushes and, for file-backed writers, closes the underlying file.
func (c *CSVWriter) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.writer.Flush()
	if c.closer != nil {
		return c.closer.Close()
	}
	return c.writer.Error()
}

func formatPrice(f float64) string {
	return strconv.FormatFloat(f, 'f', 2, 64)
}
