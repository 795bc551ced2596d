package db

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type priced struct {
	Price decimal.Decimal `bson:"price"`
}

func TestDecimalRoundTrip(t *testing.T) {
	reg := Registry()

	for _, s := range []string{"10", "10.00", "0.01", "12345.6789"} {
		in := priced{Price: decimal.RequireFromString(s)}

		raw, err := bson.MarshalWithRegistry(reg, in)
		require.NoError(t, err)

		var doc bson.M
		require.NoError(t, bson.Unmarshal(raw, &doc))
		require.IsType(t, primitive.Decimal128{}, doc["price"])

		var out priced
		require.NoError(t, bson.UnmarshalWithRegistry(reg, raw, &out))
		require.True(t, in.Price.Equal(out.Price), "%s != %s", in.Price, out.Price)
	}
}

func TestDecimalDecodesLegacyString(t *testing.T) {
	raw, err := bson.Marshal(bson.M{"price": "7.50"})
	require.NoError(t, err)

	var out priced
	require.NoError(t, bson.UnmarshalWithRegistry(Registry(), raw, &out))
	require.Equal(t, "7.5", out.Price.String())
}

func TestIndexesAreUniqueWhereRequired(t *testing.T) {
	idx := Indexes()

	unique := func(collection string) int {
		n := 0
		for _, m := range idx[collection] {
			if m.Options != nil && m.Options.Unique != nil && *m.Options.Unique {
				n++
			}
		}
		return n
	}

	require.Equal(t, 2, unique("rounds"))
	require.Equal(t, 2, unique("user_codes"))
	require.Equal(t, 1, unique("winners"))
	require.Equal(t, 0, unique("payment_requests"))
}
