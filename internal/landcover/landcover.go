// Package landcover maps raw land-cover raster codes to P.1812 clutter
// categories and each category to its resistance value.
package landcover

import (
	"fmt"
	"maps"
	"os"
	"slices"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/rfprofile-cli/internal/model"
)

// Clutter categories.
const (
	CategoryWater      = 1
	CategoryOpen       = 2
	CategorySuburban   = 3
	CategoryUrban      = 4
	CategoryDenseUrban = 5
)

// MaxCode is the highest raw land-cover code.
const MaxCode = 254

// DefaultCategories maps 10 m WorldCover classes to clutter categories.
var DefaultCategories = map[int]int{
	10:  CategoryUrban, // tree cover
	20:  CategoryOpen,  // shrubland
	30:  CategoryOpen,  // grassland
	40:  CategoryOpen,  // cropland
	50:  CategoryUrban, // built-up
	60:  CategoryOpen,  // bare / sparse vegetation
	70:  CategoryOpen,  // snow and ice
	80:  CategoryWater, // permanent water bodies
	90:  CategoryOpen,  // herbaceous wetland
	95:  CategoryUrban, // mangroves
	100: CategoryOpen,  // moss and lichen
}

// DefaultResistances holds the representative value per clutter category.
var DefaultResistances = map[int]float64{
	CategoryWater:      0,
	CategoryOpen:       0,
	CategorySuburban:   10,
	CategoryUrban:      15,
	CategoryDenseUrban: 20,
}

// Mapper is a pair of total lookups. It is immutable after construction.
type Mapper struct {
	categories  map[int]int
	resistances map[int]float64
}

// Tables is the YAML form of a Mapper.
type Tables struct {
	Categories  map[int]int     `yaml:"landcover_to_category" json:"landcover_to_category"`
	Resistances map[int]float64 `yaml:"category_to_resistance" json:"category_to_resistance"`
}

// Default returns a Mapper over the built-in tables.
func Default() *Mapper {
	m, _ := New(DefaultCategories, DefaultResistances)
	return m
}

// New validates and copies the tables.
func New(categories map[int]int, resistances map[int]float64) (*Mapper, error) {
	for code, ct := range categories {
		if code < 0 || code > MaxCode {
			return nil, &model.ValidationError{Field: "landcover_to_category", Reason: fmt.Sprintf("code %d outside [0, %d]", code, MaxCode)}
		}
		if ct < CategoryWater || ct > CategoryDenseUrban {
			return nil, &model.ValidationError{Field: "landcover_to_category", Reason: fmt.Sprintf("code %d maps to category %d outside [1, 5]", code, ct)}
		}
	}
	for ct, r := range resistances {
		if r < 0 {
			return nil, &model.ValidationError{Field: "category_to_resistance", Reason: fmt.Sprintf("category %d has negative resistance %v", ct, r)}
		}
	}
	return &Mapper{categories: maps.Clone(categories), resistances: maps.Clone(resistances)}, nil
}

// LoadTables reads a YAML tables file. Sections left out fall back to the
// built-in tables. A missing file yields a *model.ResourceMissingError.
func LoadTables(path string) (*Mapper, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &model.ResourceMissingError{Resource: "landcover tables", Path: path, Err: err}
	}
	var t Tables
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, eris.Wrapf(err, "landcover: parse %s", path)
	}
	if t.Categories == nil {
		t.Categories = DefaultCategories
	}
	if t.Resistances == nil {
		t.Resistances = DefaultResistances
	}
	return New(t.Categories, t.Resistances)
}

// Category maps a raw code, defaulting to the open category.
func (m *Mapper) Category(code int) int {
	if ct, ok := m.categories[code]; ok {
		return ct
	}
	return model.DefaultCategory
}

// Resistance maps a category, defaulting to zero.
func (m *Mapper) Resistance(category int) float64 {
	if r, ok := m.resistances[category]; ok {
		return r
	}
	return model.DefaultResistance
}

// Apply fills Category and Resistance from each point's LandCoverCode.
func (m *Mapper) Apply(points []model.SamplePoint) {
	for i := range points {
		ct := m.Category(points[i].LandCoverCode)
		points[i].Category = ct
		points[i].Resistance = m.Resistance(ct)
	}
}

// Tables returns copies of the lookup tables.
func (m *Mapper) Tables() Tables {
	return Tables{Categories: maps.Clone(m.categories), Resistances: maps.Clone(m.resistances)}
}

// Codes returns the mapped raw codes in ascending order.
func (m *Mapper) Codes() []int {
	return slices.Sorted(maps.Keys(m.categories))
}
