package staging

import (
	"fmt"
	"strings"

	pkgerrors "github.com/gdkp/gdkp-backend/pkg/errors"
	"github.com/gdkp/gdkp-backend/pkg/money"
	"github.com/gdkp/gdkp-backend/pkg/types"
)

// Editor holds the ordered staged records of one extraction batch.
type Editor struct {
	records         []types.Record
	defaultCurrency string
}

// Patch is a partial edit; nil fields are left untouched.
type Patch struct {
	ProductName *string
	Price       *money.Price
	Currency    *string
}

// NewEditor starts an editor over a copy of records.
func NewEditor(records []types.Record, defaultCurrency string) *Editor {
	if defaultCurrency == "" {
		defaultCurrency = money.DefaultCurrency
	}
	return &Editor{records: clone(records), defaultCurrency: defaultCurrency}
}

// Records returns a copy of the staged records.
func (e *Editor) Records() []types.Record {
	return clone(e.records)
}

func (e *Editor) Len() int {
	return len(e.records)
}

// Replace swaps the whole sequence, as after a fresh extraction.
func (e *Editor) Replace(records []types.Record) {
	e.records = clone(records)
}

// AppendBlank adds an empty record for manual entry and returns its index.
func (e *Editor) AppendBlank() int {
	e.records = append(e.records, types.Record{Currency: e.defaultCurrency})
	return len(e.records) - 1
}

// Remove deletes the record at index; later records shift down.
func (e *Editor) Remove(index int) error {
	if err := e.checkIndex(index); err != nil {
		return err
	}
	e.records = append(e.records[:index], e.records[index+1:]...)
	return nil
}

// Edit applies a patch to the record at index.
func (e *Editor) Edit(index int, patch Patch) error {
	if err := e.checkIndex(index); err != nil {
		return err
	}
	rec := e.records[index]
	if patch.ProductName != nil {
		rec.ProductName = *patch.ProductName
	}
	if patch.Price != nil {
		rec.Price = *patch.Price
	}
	if patch.Currency != nil {
		rec.Currency = money.NormalizeCurrency(*patch.Currency, e.defaultCurrency)
	}
	e.records[index] = rec
	return nil
}

func (e *Editor) SetName(index int, name string) error {
	return e.Edit(index, Patch{ProductName: &name})
}

func (e *Editor) SetPrice(index int, price money.Price) error {
	return e.Edit(index, Patch{Price: &price})
}

func (e *Editor) SetCurrency(index int, code string) error {
	return e.Edit(index, Patch{Currency: &code})
}

// Validate gates submission: the batch must be non-empty and every record
// needs a non-blank product name. Prices may be unknown.
func (e *Editor) Validate() error {
	return ValidateRecords(e.records)
}

// ValidateRecords applies the submission rules to any record slice.
func ValidateRecords(records []types.Record) error {
	if len(records) == 0 {
		return pkgerrors.New(pkgerrors.CodeInvalidInput, "at least one product is required")
	}
	var blank []int
	for i, rec := range records {
		if strings.TrimSpace(rec.ProductName) == "" {
			blank = append(blank, i)
		}
	}
	if len(blank) > 0 {
		return pkgerrors.New(pkgerrors.CodeInvalidInput, "every product needs a name").
			WithDetails(map[string]any{"blank_names": blank})
	}
	return nil
}

func (e *Editor) checkIndex(index int) error {
	if index < 0 || index >= len(e.records) {
		return pkgerrors.New(pkgerrors.CodeInvalidInput, fmt.Sprintf("record index %d out of range", index))
	}
	return nil
}

func clone(in []types.Record) []types.Record {
	if in == nil {
		return []types.Record{}
	}
	out := make([]types.Record, len(in))
	copy(out, in)
	return out
}
