package memindex

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/productmatch/backend/internal/domain"
)

// catalogFile is the on-disk fixture layout. JSON fixtures parse too since
// JSON is valid YAML.
type catalogFile struct {
	Products []domain.ProductRecord `yaml:"products"`
}

// ReadCatalog decodes a catalog fixture
func ReadCatalog(r io.Reader) ([]domain.ProductRecord, error) {
	var file catalogFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrIndexData, err)
	}
	return file.Products, nil
}

// ReadCatalogFile decodes the catalog fixture at path
func ReadCatalogFile(path string) ([]domain.ProductRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog %s: %w", path, err)
	}
	defer f.Close()

	records, err := ReadCatalog(f)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	return records, nil
}

// LoadFile builds an index from a catalog fixture file
func LoadFile(path string, opts ...Option) (*Index, error) {
	records, err := ReadCatalogFile(path)
	if err != nil {
		return nil, err
	}
	return New(records, opts...), nil
}
