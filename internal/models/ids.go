package models

import (
	"sync"

	"github.com/bwmarrin/snowflake"
)

var (
	idMu   sync.Mutex
	idNode *snowflake.Node
)

// InitIDGenerator configures the snowflake node used for business ids.
// Node ids must fit the snowflake range [0, 1023].
func InitIDGenerator(nodeID int64) error {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return err
	}
	idMu.Lock()
	idNode = node
	idMu.Unlock()
	return nil
}

func generator() *snowflake.Node {
	idMu.Lock()
	defer idMu.Unlock()
	if idNode == nil {
		// Node 1 is always in range; used when InitIDGenerator was not called.
		idNode, _ = snowflake.NewNode(1)
	}
	return idNode
}

// NewBusinessID returns a prefixed snowflake id, e.g. "V1845672391082".
func NewBusinessID(prefix string) string {
	return prefix + generator().Generate().String()
}
