package schema_test

import (
	"errors"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gorm.io/microorm/schema"
)

type Money struct {
	Amount   int64
	Currency string
}

func TestConstructors(t *testing.T) {
	r := &schema.Constructors{}
	mt := reflect.TypeOf(Money{})
	assert.Nil(t, r.Primary(mt))

	require.NoError(t, r.Register(func(amount int64) Money { return Money{Amount: amount} }, "amount"))
	require.NoError(t, r.Register(func(amount int64, currency string) (*Money, error) {
		if currency == "" {
			return nil, errors.New("currency required")
		}
		return &Money{Amount: amount, Currency: currency}, nil
	}, "Amount", "Currency"))

	primary := r.Primary(reflect.TypeOf(&Money{}))
	require.NotNil(t, primary)
	assert.Len(t, primary.Params, 2)
	assert.Equal(t, "Currency", primary.Params[1].Name)
	assert.True(t, primary.ReturnsPointer)
	assert.True(t, primary.ReturnsError)

	v, err := primary.Call([]reflect.Value{reflect.ValueOf(int64(5)), reflect.ValueOf("EUR")})
	require.NoError(t, err)
	assert.Equal(t, &Money{Amount: 5, Currency: "EUR"}, v.Interface())

	_, err = primary.Call([]reflect.Value{reflect.ValueOf(int64(5)), reflect.ValueOf("")})
	assert.EqualError(t, err, "currency required")

	r.Remove(mt)
	assert.Nil(t, r.Primary(mt))
}

func TestConstructorByValue(t *testing.T) {
	r := &schema.Constructors{}
	require.NoError(t, r.Register(func(amount int64) Money { return Money{Amount: amount} }, "amount"))
	v, err := r.Primary(reflect.TypeOf(Money{})).Call([]reflect.Value{reflect.ValueOf(int64(9))})
	require.NoError(t, err)
	assert.Equal(t, &Money{Amount: 9}, v.Interface())
}

func TestConstructorValidation(t *testing.T) {
	r := &schema.Constructors{}
	tests := []struct {
		name  string
		fn    interface{}
		names []string
	}{
		{"not a func", 42, nil},
		{"names mismatch", func(a int64) Money { return Money{} }, nil},
		{"variadic", func(a ...int64) Money { return Money{} }, []string{"a"}},
		{"no result", func(a int64) {}, []string{"a"}},
		{"second not error", func(a int64) (Money, int) { return Money{}, 0 }, []string{"a"}},
		{"not struct", func(a int64) int { return 0 }, []string{"a"}},
		{"repeated names", func(a, b int64) Money { return Money{} }, []string{"a", "A"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := r.Register(tt.fn, tt.names...)
			assert.True(t, errors.Is(err, schema.ErrInvalidConstructor), "%v", err)
		})
	}
}
