package jsonrepair

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScanner_IgnoresBracketsInStrings(t *testing.T) {
	sc := Scan(`{"a":"[{","b":[1,{"c":"}]"`)
	assert.Equal(t, Normal, sc.State())
	assert.Equal(t, 3, sc.Depth())
	assert.Equal(t, "}]}", sc.Closers())
}

func TestScanner_States(t *testing.T) {
	assert.Equal(t, InString, Scan(`{"a":"abc`).State())
	assert.Equal(t, Escaped, Scan(`{"a":"abc\`).State())
	assert.Equal(t, InString, Scan(`{"a":"abc\"`).State())
	assert.Equal(t, Normal, Scan(`{"a":"abc\\"`).State())
}

func TestScanner_TopLevelCommas(t *testing.T) {
	src := `{"a":{"x":1,"y":2},"b":[1,2],"c":"d,e"}`
	commas := Scan(src).TopLevelCommas()
	assert.Len(t, commas, 2)
	for _, i := range commas {
		assert.Equal(t, byte(','), src[i])
	}
}

func TestTrimDangling(t *testing.T) {
	cases := map[string]string{
		`{"a":1,`:          `{"a":1`,
		`{"a":1,"b":`:      `{"a":1`,
		`{"a":1,"b"`:       `{"a":1`,
		`{"a":1,"b":fals`:  `{"a":1`,
		`{"a":1,"b":false`: `{"a":1,"b":false`,
		`{"a":["x","y"`:    `{"a":["x","y"`,
		`{"a":-`:           `{`,
	}
	for in, want := range cases {
		assert.Equal(t, want, trimDangling(in), in)
	}
}
