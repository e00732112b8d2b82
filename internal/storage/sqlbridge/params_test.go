package sqlbridge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBind_PreservesOrderAndKinds(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	args := bind([]Param{
		Text("alice"),
		Int(42),
		Timestamp(at),
		Bool(true),
		Bytes([]byte{0x01}),
		Null(),
	})

	assert.Equal(t, []any{"alice", int64(42), at.UnixMilli(), true, []byte{0x01}, nil}, args)
}

func TestParam_ZeroValueIsNull(t *testing.T) {
	var p Param
	assert.Equal(t, KindNull, p.Kind())
	assert.Nil(t, p.Value())
	assert.Equal(t, KindTimestamp, Timestamp(time.Now()).Kind())
}
