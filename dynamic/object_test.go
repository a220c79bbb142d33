package dynamic_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gorm.io/microorm/dynamic"
)

func TestObject(t *testing.T) {
	o := dynamic.New(3)
	o.Set("Id", 1)
	o.Set("Name", "Ada")
	o.Set("Email", nil)

	v, ok := o.Get("NAME")
	require.True(t, ok)
	assert.Equal(t, "Ada", v)
	assert.True(t, o.Has("email"))
	assert.False(t, o.Has("age"))

	o.Set("name", "Grace")
	assert.Equal(t, []string{"Id", "Name", "Email"}, o.Keys())
	assert.Equal(t, "Grace", o.Map()["Name"])

	o.Delete("ID")
	assert.Equal(t, []string{"Name", "Email"}, o.Keys())
	v, ok = o.Get("email")
	assert.True(t, ok)
	assert.Nil(t, v)
	assert.Equal(t, 2, o.Len())

	var zero dynamic.Object
	zero.Set("a", 1)
	assert.Equal(t, 1, zero.Len())

	var nilObject *dynamic.Object
	assert.Equal(t, 0, nilObject.Len())
	assert.False(t, nilObject.Has("a"))
}

func TestObjectJSON(t *testing.T) {
	o := dynamic.FromMap(map[string]interface{}{"b": 2, "a": "x"})
	data, err := json.Marshal(o)
	require.NoError(t, err)
	assert.Equal(t, `{"a":"x","b":2}`, string(data))

	var back dynamic.Object
	require.NoError(t, json.Unmarshal([]byte(`{"Zeta":1,"alpha":null}`), &back))
	assert.Equal(t, []string{"Zeta", "alpha"}, back.Keys())
	v, _ := back.Get("zeta")
	assert.Equal(t, json.Number("1"), v)
}
