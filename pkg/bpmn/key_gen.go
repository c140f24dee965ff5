package bpmn

import (
	"hash/adler32"
	"os"

	"github.com/bwmarrin/snowflake"
)

// newSnowflakeIdGenerator seeds the node id from a hash of the environment
// so two engines on different hosts are unlikely to collide.
func newSnowflakeIdGenerator() (*snowflake.Node, error) {
	hash32 := adler32.New()
	for _, e := range os.Environ() {
		_, _ = hash32.Write([]byte(e))
	}
	return snowflake.NewNode(int64(hash32.Sum32() % 1024))
}

func (e *Engine) generateKey() int64 {
	return e.snowflake.Generate().Int64()
}
