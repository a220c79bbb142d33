//go:build unix

package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSourceDir(t *testing.T) {
	cases := map[string]string{
		"/home/dev/go/pkg/mod/gorm.io/microorm@v0.4.1/utils/utils.go": "/home/dev/go/pkg/mod/gorm.io/",
		"/src/microorm/utils/utils.go":                                "/src/microorm/",
		"/src/vendor/gorm.io/microorm/utils/utils.go":                 "/src/vendor/gorm.io/",
		"/src/orm.gorm.io/microorm@v0.4.1/utils/utils.go":             "/src/orm.gorm.io/microorm@v0.4.1/",
	}
	for file, want := range cases {
		assert.Equal(t, want, sourceDir(file), file)
	}
}
