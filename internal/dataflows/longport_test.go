package dataflows

import (
	"context"
	"testing"

	"github.com/longportapp/openapi-go/quote"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLongportQuotes struct {
	statics []*quote.StaticInfo
	quotes  []*quote.SecurityQuote
}

func (f *fakeLongportQuotes) StaticInfo(context.Context, []string) ([]*quote.StaticInfo, error) {
	return f.statics, nil
}

func (f *fakeLongportQuotes) Quote(context.Context, []string) ([]*quote.SecurityQuote, error) {
	return f.quotes, nil
}

func TestLongportInfoService(t *testing.T) {
	last := decimal.RequireFromString("372.40")
	ls := &LongportInfoService{
		quotes: &fakeLongportQuotes{
			statics: []*quote.StaticInfo{{Symbol: "700.HK", NameEn: "TENCENT", NameCn: "腾讯控股"}},
			quotes:  []*quote.SecurityQuote{{Symbol: "700.HK", LastDone: &last}},
		},
		log: zerolog.Nop(),
	}

	info, err := ls.FetchInfo(context.Background(), "700.HK")
	require.NoError(t, err)
	assert.Equal(t, "TENCENT", info.Name)
	assert.True(t, info.Price.Equal(last))
	assert.Equal(t, "N/A", info.Sector)
}

func TestLongportInfoServiceNoQuote(t *testing.T) {
	ls := &LongportInfoService{quotes: &fakeLongportQuotes{}, log: zerolog.Nop()}
	_, err := ls.FetchInfo(context.Background(), "700.HK")
	assert.Error(t, err)
}

func TestNewLongportInfoServiceNeedsCredentials(t *testing.T) {
	_, err := NewLongportInfoService(LongportCredentials{AppKey: "k"}, zerolog.Nop())
	assert.Error(t, err)
}
