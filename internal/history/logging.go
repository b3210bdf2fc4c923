package history

import "go.uber.org/zap"

// Values of the "operation" log field
const (
	opProjectDiscovery = "project_discovery"
	opSessionCount     = "session_count"
	opSessionLoad      = "session_load"
	opMessageParsing   = "message_parsing"
	opGrouping         = "grouping"
	opPathEncoding     = "path_encoding"
)

// toolFields returns the fields every per-tool log line carries
func toolFields(op string, tool Tool, extra ...zap.Field) []zap.Field {
	return append([]zap.Field{
		zap.String("operation", op),
		zap.String("ai_tool", string(tool)),
	}, extra...)
}
