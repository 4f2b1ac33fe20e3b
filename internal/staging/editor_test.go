package staging

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/gdkp/gdkp-backend/pkg/errors"
	"github.com/gdkp/gdkp-backend/pkg/money"
	"github.com/gdkp/gdkp-backend/pkg/types"
)

func sampleRecords() []types.Record {
	return []types.Record{
		{Text: "Milk", ProductName: "Milk", Price: money.NewPrice(decimal.RequireFromString("1.20")), Currency: "EUR"},
		{Text: "Bread", ProductName: "Bread", Currency: "EUR"},
		{Text: "Eggs", ProductName: "Eggs", Price: money.NewPrice(decimal.NewFromInt(3)), Currency: "EUR"},
	}
}

func TestEditorRemoveShiftsLaterRecords(t *testing.T) {
	ed := NewEditor(sampleRecords(), "USD")
	require.NoError(t, ed.Remove(1))

	recs := ed.Records()
	require.Len(t, recs, 2)
	assert.Equal(t, "Milk", recs[0].ProductName)
	assert.Equal(t, "Eggs", recs[1].ProductName)
}

func TestEditorAppendBlankUsesDefaultCurrency(t *testing.T) {
	ed := NewEditor(nil, "UAH")
	idx := ed.AppendBlank()
	assert.Equal(t, 0, idx)

	rec := ed.Records()[0]
	assert.Equal(t, "", rec.ProductName)
	assert.False(t, rec.Price.Known())
	assert.Equal(t, "UAH", rec.Currency)
}

func TestEditorEditAppliesPatch(t *testing.T) {
	ed := NewEditor(sampleRecords(), "USD")
	price := money.UnknownPrice()
	name := "Whole milk"
	cur := "pln"
	require.NoError(t, ed.Edit(0, Patch{ProductName: &name, Price: &price, Currency: &cur}))

	rec := ed.Records()[0]
	assert.Equal(t, "Whole milk", rec.ProductName)
	assert.Equal(t, "Milk", rec.Text, "source text is kept")
	assert.False(t, rec.Price.Known())
	assert.Equal(t, "PLN", rec.Currency)

	require.NoError(t, ed.SetPrice(1, money.NewPrice(decimal.RequireFromString("-0.50"))))
	assert.Equal(t, "-0.5", ed.Records()[1].Price.String())
}

func TestEditorRejectsOutOfRange(t *testing.T) {
	ed := NewEditor(sampleRecords(), "USD")
	for _, idx := range []int{-1, 3} {
		err := ed.Remove(idx)
		require.Error(t, err)
		assert.Equal(t, pkgerrors.CodeInvalidInput, pkgerrors.As(err).Code())
		require.Error(t, ed.SetName(idx, "x"))
	}
	assert.Equal(t, 3, ed.Len())
}

func TestEditorRecordsAreCopies(t *testing.T) {
	src := sampleRecords()
	ed := NewEditor(src, "USD")
	src[0].ProductName = "mutated"
	out := ed.Records()
	out[1].ProductName = "mutated too"

	recs := ed.Records()
	assert.Equal(t, "Milk", recs[0].ProductName)
	assert.Equal(t, "Bread", recs[1].ProductName)
}

func TestValidateRequiresNonEmptyNames(t *testing.T) {
	ed := NewEditor(nil, "USD")
	err := ed.Validate()
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeInvalidInput, pkgerrors.As(err).Code())

	ed.Replace(sampleRecords())
	require.NoError(t, ed.Validate(), "null price is allowed")

	require.NoError(t, ed.SetName(2, "   "))
	err = ed.Validate()
	require.Error(t, err)
	assert.Equal(t, map[string]any{"blank_names": []int{2}}, pkgerrors.As(err).Details())
}

func TestSessionAcceptResetsDownstreamState(t *testing.T) {
	s := NewSession("USD")
	s.Accept(Image{Name: "first.jpg", ImageURL: "https://cdn/first.jpg"})
	s.Extracted(`[{"title":"Milk"}]`, sampleRecords())
	s.SetLocation(&types.Location{Name: "Silpo", Address: "Kyiv"})

	s.Accept(Image{Name: "second.jpg"})

	assert.Equal(t, "second.jpg", s.Image.Name)
	assert.Empty(t, s.RawResult)
	assert.Nil(t, s.Location)
	assert.Equal(t, 0, s.Editor.Len())
	assert.Empty(t, s.ImageURL())
}

func TestSessionSetLocationIgnoresBlank(t *testing.T) {
	s := NewSession("USD")
	s.SetLocation(&types.Location{Name: "Biedronka"})
	require.NotNil(t, s.Location)
	s.SetLocation(&types.Location{})
	assert.Nil(t, s.Location)
}
