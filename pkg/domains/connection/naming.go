package connection

import (
	"regexp"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/mitchellh/mapstructure"
	"github.com/waconnect/pkg/entities"
)

const maxNameBase = 40

var (
	unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_-]+`)
	underscores = regexp.MustCompile(`_{2,}`)
)

// namer derives gateway instance names. The snowflake suffix is time
// ordered and never repeats on one node, even within a millisecond.
type namer struct {
	node *snowflake.Node
}

func newNamer(nodeID int64) (*namer, error) {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, err
	}
	return &namer{node: node}, nil
}

func (n *namer) derive(displayName string) string {
	return sanitizeName(displayName) + "_" + n.node.Generate().String()
}

// sanitizeName maps displayName onto [A-Za-z0-9_-] with no leading or
// trailing underscores.
func sanitizeName(displayName string) string {
	base := unsafeChars.ReplaceAllString(strings.TrimSpace(displayName), "_")
	base = underscores.ReplaceAllString(base, "_")
	base = strings.Trim(base, "_")
	if len(base) > maxNameBase {
		base = strings.TrimRight(base[:maxNameBase], "_")
	}
	if base == "" {
		base = "instance"
	}
	return base
}

const metaInstanceName = "instance_name"

type gatewayMeta struct {
	InstanceName string `mapstructure:"instance_name"`
	Integration  string `mapstructure:"integration"`
}

func newGatewayMetadata(instanceName, integration string) map[string]interface{} {
	return map[string]interface{}{
		metaInstanceName: instanceName,
		"integration":    integration,
	}
}

// instanceName is the gateway handle of conn. The metadata bag is
// authoritative, the column is the fallback.
func instanceName(conn *entities.Connection) string {
	var meta gatewayMeta
	if err := mapstructure.Decode(conn.GatewayMetadata, &meta); err == nil && meta.InstanceName != "" {
		return meta.InstanceName
	}
	return conn.GatewayInstanceName
}
