package utils

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFileWithLineNum(t *testing.T) {
	t.Log("file line with num: ", FileWithLineNum())
}

func TestCheckTruth(t *testing.T) {
	assert.True(t, CheckTruth("true"))
	assert.True(t, CheckTruth("", "1"))
	assert.False(t, CheckTruth("false"))
	assert.False(t, CheckTruth("FALSE", ""))
	assert.False(t, CheckTruth())
}

func TestToString(t *testing.T) {
	tests := []struct {
		in   interface{}
		want string
	}{
		{int8(-3), "-3"},
		{uint16(7), "7"},
		{int64(1 << 40), "1099511627776"},
		{"s", "s"},
		{1.5, ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ToString(tt.in))
	}
}

func TestIndirectAndTypeName(t *testing.T) {
	type local struct{}
	var pp **local
	assert.Equal(t, reflect.TypeOf(local{}), Indirect(reflect.TypeOf(pp)))
	assert.Equal(t, "gorm.io/microorm/utils.local", TypeName(reflect.TypeOf(local{})))
	assert.Equal(t, "[]int", TypeName(reflect.TypeOf([]int{})))
	assert.Equal(t, "<nil>", TypeName(nil))
	assert.True(t, Contains([]string{"Id", "Name"}, "name"))
}
