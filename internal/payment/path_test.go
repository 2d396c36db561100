package payment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookup(t *testing.T) {
	p, err := ParsePayload([]byte(`{
		"transaction": {
			"id": "tx-1",
			"amount_in_cents": 4490000,
			"fee": 12.5,
			"test": true,
			"nested": {"deep": {"value": "x"}},
			"list": [1, 2],
			"empty": null
		}
	}`))
	require.NoError(t, err)

	cases := map[string]string{
		"transaction.id":                "tx-1",
		"transaction.amount_in_cents":   "4490000",
		"transaction.fee":               "12.5",
		"transaction.test":              "true",
		"transaction.nested.deep.value": "x",
	}
	for path, want := range cases {
		got, err := Lookup(p, path)
		require.NoError(t, err, path)
		assert.Equal(t, want, got, path)
	}

	for _, path := range []string{"", "transaction.missing", "transaction.id.more", "transaction.nested", "transaction.list", "transaction.empty"} {
		_, err := Lookup(p, path)
		assert.ErrorIs(t, err, ErrPathNotFound, path)
	}

	assert.Equal(t, "", LookupString(p, "nope"))
	assert.NotNil(t, LookupStruct(p, "transaction.nested"))
	assert.Nil(t, LookupStruct(p, "transaction.id.x"))
}

func TestParsePayload_Malformed(t *testing.T) {
	for _, body := range []string{``, `not json`, `[1,2]`, `{"a":`} {
		_, err := ParsePayload([]byte(body))
		assert.ErrorIs(t, err, ErrMalformedPayload, body)
	}
}
