package common

import (
	"strings"
	"sync"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
)

// ProvisionalPrefix marks ids created on a client before the store assigned one
const ProvisionalPrefix = "tmp-"

var (
	nodeOnce sync.Once
	node     *snowflake.Node
)

// SetNode selects the snowflake node id, it must be called before the first id is generated
func SetNode(id int64) error {
	n, err := snowflake.NewNode(id)
	if err != nil {
		return err
	}
	nodeOnce.Do(func() {})
	node = n
	return nil
}

func idNode() *snowflake.Node {
	nodeOnce.Do(func() {
		node, _ = snowflake.NewNode(1)
	})
	return node
}

// NextID returns a time ordered id in decimal form
func NextID() string {
	return idNode().Generate().String()
}

// ShortID returns an upper case base36 id, used as the client token
func ShortID() string {
	return strings.ToUpper(idNode().Generate().Base36())
}

func UUID() string {
	return uuid.NewString()
}

// ProvisionalID returns a client side placeholder id
func ProvisionalID() string {
	return ProvisionalPrefix + uuid.NewString()
}

func IsProvisional(id string) bool {
	return strings.HasPrefix(id, ProvisionalPrefix)
}
