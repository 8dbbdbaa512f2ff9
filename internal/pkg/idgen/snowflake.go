package idgen

import (
	"sync"

	"github.com/bwmarrin/snowflake"
)

var (
	node *snowflake.Node
	once sync.Once
)

// Initialize sets up the Snowflake ID generator with a node ID
func Initialize(nodeID int64) error {
	var err error
	once.Do(func() {
		node, err = snowflake.NewNode(nodeID)
	})
	return err
}

// NewID generates a new Snowflake ID for a database row
func NewID() int64 {
	if node == nil {
		// Initialize with default node ID if not already initialized
		_ = Initialize(1)
	}
	return node.Generate().Int64()
}
