package observer

import "go.opentelemetry.io/otel/attribute"

// Attribute keys for dispatch spans and metrics.
var (
	AttrOperation = attribute.Key("couchmcp.operation")
	AttrStatus    = attribute.Key("couchmcp.status")
	AttrErrorKind = attribute.Key("couchmcp.error_kind")
)
