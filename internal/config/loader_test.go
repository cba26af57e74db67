package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExpandEnv(t *testing.T) {
	t.Setenv("KB_TEST_HOST", "db.internal")

	assert.Equal(t, "db.internal", expandEnv("${KB_TEST_HOST}"))
	assert.Equal(t, "db.internal", expandEnv("${KB_TEST_HOST:fallback}"))
	assert.Equal(t, "fallback", expandEnv("${KB_TEST_MISSING:fallback}"))
	// 无默认值且未定义时原样保留，便于发现配置错误。
	assert.Equal(t, "${KB_TEST_MISSING}", expandEnv("${KB_TEST_MISSING}"))
	assert.Equal(t, "host: db.internal port: 5432",
		expandEnv("host: ${KB_TEST_HOST} port: ${KB_TEST_PORT:5432}"))
}
