package frame

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/apache/arrow/go/v7/arrow"
	"github.com/apache/arrow/go/v7/arrow/array"
	"github.com/apache/arrow/go/v7/arrow/memory"

	"github.com/YuminosukeSato/tabsynth/pkg/errors"
)

// CategoriesKey is the arrow field metadata key holding the JSON encoded
// category vocabulary of a Category column. The column data are int32
// indices into that vocabulary.
const CategoriesKey = "tabsynth.categories"

// mem allocates every array built by this package. Arrays are garbage
// collected, so frames need no explicit Release.
var mem = memory.NewGoAllocator()

// DType is the storage type of a column.
type DType int

const (
	// Float64 is a real-valued numeric column.
	Float64 DType = iota
	// Int64 is an integer numeric column.
	Int64
	// Category is a finite-category column with a declared vocabulary.
	Category
	// String is a free-text column.
	String
	// Datetime is a timestamp column.
	Datetime
)

// String returns the pandas-style dtype name.
func (d DType) String() string {
	switch d {
	case Float64:
		return "float64"
	case Int64:
		return "int64"
	case Category:
		return "category"
	case String:
		return "string"
	case Datetime:
		return "datetime64"
	default:
		return "unknown(" + strconv.Itoa(int(d)) + ")"
	}
}

// IsNumeric reports whether the dtype stores numeric values.
func (d DType) IsNumeric() bool {
	return d == Float64 || d == Int64
}

// Column is a named, typed column over an immutable arrow array.
//
// Float64 and Int64 columns are arrow float64 / int64 arrays. Category
// columns are int32 code arrays whose field metadata carries the vocabulary
// (see CategoriesKey), String columns are utf8 arrays and Datetime columns
// nanosecond timestamps.
type Column struct {
	field arrow.Field
	data  arrow.Array
	dtype DType

	// decoded from the field metadata of Category columns
	categories []string
}

// newColumn wraps an arrow array, classifying it by its field.
func newColumn(op string, field arrow.Field, data arrow.Array) (*Column, error) {
	if data.NullN() > 0 {
		return nil, errors.NewValueError(op,
			fmt.Sprintf("column '%s' has %d null values", field.Name, data.NullN()))
	}
	c := &Column{field: field, data: data}
	switch data.(type) {
	case *array.Float64:
		c.dtype = Float64
	case *array.Int64:
		c.dtype = Int64
	case *array.String:
		c.dtype = String
	case *array.Timestamp:
		c.dtype = Datetime
	case *array.Int32:
		i := field.Metadata.FindKey(CategoriesKey)
		if i < 0 {
			return nil, errors.NewTypeError(op, field.Name, field.Type.Name())
		}
		if err := json.Unmarshal([]byte(field.Metadata.Values()[i]), &c.categories); err != nil {
			return nil, errors.Wrapf(err, "%s: column '%s': categories metadata", op, field.Name)
		}
		c.dtype = Category
		for row, code := range data.(*array.Int32).Int32Values() {
			if code < 0 || int(code) >= len(c.categories) {
				return nil, errors.NewValueError(op,
					fmt.Sprintf("column '%s': code %d at row %d out of range [0, %d)", field.Name, code, row, len(c.categories)))
			}
		}
	default:
		return nil, errors.NewTypeError(op, field.Name, field.Type.Name())
	}
	return c, nil
}

// NewFloatColumn creates a Float64 column. values are copied.
func NewFloatColumn(name string, values []float64) *Column {
	b := array.NewFloat64Builder(mem)
	defer b.Release()
	b.AppendValues(values, nil)
	return &Column{
		field: arrow.Field{Name: name, Type: arrow.PrimitiveTypes.Float64},
		data:  b.NewFloat64Array(),
		dtype: Float64,
	}
}

// NewIntColumn creates an Int64 column. values are copied.
func NewIntColumn(name string, values []int64) *Column {
	b := array.NewInt64Builder(mem)
	defer b.Release()
	b.AppendValues(values, nil)
	return &Column{
		field: arrow.Field{Name: name, Type: arrow.PrimitiveTypes.Int64},
		data:  b.NewInt64Array(),
		dtype: Int64,
	}
}

// NewCategoricalColumn creates a Category column whose vocabulary is the
// distinct labels in first-seen order.
func NewCategoricalColumn(name string, labels []string) *Column {
	index := make(map[string]int)
	categories := make([]string, 0)
	codes := make([]int, len(labels))
	for i, label := range labels {
		code, ok := index[label]
		if !ok {
			code = len(categories)
			index[label] = code
			categories = append(categories, label)
		}
		codes[i] = code
	}
	return categoryColumn(name, codes, categories)
}

// NewCategoricalColumnWithCategories creates a Category column with an
// explicitly declared vocabulary. Categories may include labels that never
// occur; a label missing from categories is an error.
func NewCategoricalColumnWithCategories(name string, labels, categories []string) (*Column, error) {
	index := make(map[string]int, len(categories))
	for i, c := range categories {
		if _, dup := index[c]; dup {
			return nil, errors.NewValueError("NewCategoricalColumnWithCategories",
				fmt.Sprintf("column '%s': duplicate category %q", name, c))
		}
		index[c] = i
	}
	codes := make([]int, len(labels))
	for i, label := range labels {
		code, ok := index[label]
		if !ok {
			return nil, errors.Wrapf(errors.NewValueError("NewCategoricalColumnWithCategories",
				fmt.Sprintf("column '%s': label %q not in categories", name, label)), "row %d", i)
		}
		codes[i] = code
	}
	return categoryColumn(name, codes, append([]string(nil), categories...)), nil
}

// NewCategoricalColumnFromCodes creates a Category column directly from codes.
func NewCategoricalColumnFromCodes(name string, codes []int, categories []string) (*Column, error) {
	for i, c := range codes {
		if c < 0 || c >= len(categories) {
			return nil, errors.NewValueError("NewCategoricalColumnFromCodes",
				fmt.Sprintf("column '%s': code %d at row %d out of range [0, %d)", name, c, i, len(categories)))
		}
	}
	return categoryColumn(name, codes, append([]string(nil), categories...)), nil
}

// categoryColumn builds the int32 code array and the vocabulary metadata.
// codes must already be valid.
func categoryColumn(name string, codes []int, categories []string) *Column {
	raw := make([]int32, len(codes))
	for i, c := range codes {
		raw[i] = int32(c)
	}
	b := array.NewInt32Builder(mem)
	defer b.Release()
	b.AppendValues(raw, nil)

	// a []string always marshals
	encoded, _ := json.Marshal(categories)
	return &Column{
		field: arrow.Field{
			Name:     name,
			Type:     arrow.PrimitiveTypes.Int32,
			Metadata: arrow.NewMetadata([]string{CategoriesKey}, []string{string(encoded)}),
		},
		data:       b.NewInt32Array(),
		dtype:      Category,
		categories: categories,
	}
}

// NewStringColumn creates a String column.
func NewStringColumn(name string, values []string) *Column {
	b := array.NewStringBuilder(mem)
	defer b.Release()
	b.AppendValues(values, nil)
	return &Column{
		field: arrow.Field{Name: name, Type: arrow.BinaryTypes.String},
		data:  b.NewStringArray(),
		dtype: String,
	}
}

// NewDatetimeColumn creates a Datetime column with nanosecond resolution.
func NewDatetimeColumn(name string, values []time.Time) *Column {
	typ := &arrow.TimestampType{Unit: arrow.Nanosecond, TimeZone: "UTC"}
	b := array.NewTimestampBuilder(mem, typ)
	defer b.Release()
	for _, t := range values {
		b.Append(arrow.Timestamp(t.UnixNano()))
	}
	return &Column{
		field: arrow.Field{Name: name, Type: typ},
		data:  b.NewTimestampArray(),
		dtype: Datetime,
	}
}

// Name returns the column name.
func (c *Column) Name() string { return c.field.Name }

// DType returns the storage type.
func (c *Column) DType() DType { return c.dtype }

// Field returns the arrow schema field of the column.
func (c *Column) Field() arrow.Field { return c.field }

// Array returns the underlying arrow array.
func (c *Column) Array() arrow.Array { return c.data }

// Len returns the number of rows.
func (c *Column) Len() int { return c.data.Len() }

// Values returns the numeric values of a Float64 or Int64 column, nil for
// other dtypes. Float64 columns share the arrow buffer; the slice must not
// be modified.
func (c *Column) Values() []float64 {
	switch a := c.data.(type) {
	case *array.Float64:
		return a.Float64Values()
	case *array.Int64:
		raw := a.Int64Values()
		out := make([]float64, len(raw))
		for i, v := range raw {
			out[i] = float64(v)
		}
		return out
	default:
		return nil
	}
}

// Codes returns the category codes of a Category column, nil otherwise.
func (c *Column) Codes() []int {
	a, ok := c.data.(*array.Int32)
	if !ok || c.dtype != Category {
		return nil
	}
	raw := a.Int32Values()
	out := make([]int, len(raw))
	for i, v := range raw {
		out[i] = int(v)
	}
	return out
}

// Categories returns the vocabulary of a Category column. The slice must
// not be modified.
func (c *Column) Categories() []string { return c.categories }

// Strings returns the values of a String column, nil otherwise.
func (c *Column) Strings() []string {
	a, ok := c.data.(*array.String)
	if !ok {
		return nil
	}
	out := make([]string, a.Len())
	for i := range out {
		out[i] = a.Value(i)
	}
	return out
}

// Times returns the values of a Datetime column in UTC, nil otherwise.
func (c *Column) Times() []time.Time {
	a, ok := c.data.(*array.Timestamp)
	if !ok {
		return nil
	}
	scale := nanosPerUnit(c.field.Type.(*arrow.TimestampType).Unit)
	out := make([]time.Time, a.Len())
	for i, v := range a.TimestampValues() {
		out[i] = time.Unix(0, int64(v)*scale).UTC()
	}
	return out
}

func nanosPerUnit(u arrow.TimeUnit) int64 {
	switch u {
	case arrow.Second:
		return int64(time.Second)
	case arrow.Millisecond:
		return int64(time.Millisecond)
	case arrow.Microsecond:
		return int64(time.Microsecond)
	default:
		return 1
	}
}

// AsCategory converts a String column into a Category column whose
// categories are the distinct values sorted lexically, like pandas
// astype("category"). Category columns are returned unchanged.
func (c *Column) AsCategory() (*Column, error) {
	switch c.dtype {
	case Category:
		return c, nil
	case String:
		values := c.Strings()
		seen := make(map[string]struct{})
		for _, v := range values {
			seen[v] = struct{}{}
		}
		categories := make([]string, 0, len(seen))
		for v := range seen {
			categories = append(categories, v)
		}
		sort.Strings(categories)
		return NewCategoricalColumnWithCategories(c.Name(), values, categories)
	default:
		return nil, errors.NewTypeError("Column.AsCategory", c.Name(), c.dtype.String())
	}
}

// Float returns the numeric value of row i; category columns yield the code.
func (c *Column) Float(i int) float64 {
	switch a := c.data.(type) {
	case *array.Float64:
		return a.Value(i)
	case *array.Int64:
		return float64(a.Value(i))
	case *array.Int32:
		return float64(a.Value(i))
	default:
		return 0
	}
}

// Label returns the category label of row i.
func (c *Column) Label(i int) string {
	return c.categories[c.data.(*array.Int32).Value(i)]
}

// Labels returns all category labels in row order.
func (c *Column) Labels() []string {
	out := make([]string, c.Len())
	for i := range out {
		out[i] = c.Label(i)
	}
	return out
}
