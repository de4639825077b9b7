package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestServiceImages_ExposeTCPPorts(t *testing.T) {
	for _, c := range []*sharedContainer{surrealDB, redisDB} {
		t.Run(c.svc.name, func(t *testing.T) {
			assert.Equal(t, "tcp", c.svc.port.Proto())
			assert.Positive(t, c.svc.port.Int())
			assert.NotEmpty(t, c.svc.readyLog)
		})
	}
	assert.Equal(t, 8000, surrealDB.svc.port.Int())
	assert.Equal(t, 6379, redisDB.svc.port.Int())
}

func TestAddress(t *testing.T) {
	c := &Container{Host: "localhost", Port: "32768"}
	assert.Equal(t, "ws://localhost:32768/rpc", SurrealDBContainer{c}.Address())
	assert.Equal(t, "localhost:32768", RedisContainer{c}.Address())
}
