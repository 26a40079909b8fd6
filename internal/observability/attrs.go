package observability

import (
	"strconv"

	"go.opentelemetry.io/otel/attribute"
)

func methodAttr(method string) attribute.KeyValue {
	return attribute.String("method", method)
}

func routeAttr(route string) attribute.KeyValue {
	return attribute.String("route", route)
}

func statusAttr(status int) attribute.KeyValue {
	return attribute.String("status", strconv.Itoa(status))
}

func resultAttr(result string) attribute.KeyValue {
	return attribute.String("result", result)
}

func decisionAttr(decision string) attribute.KeyValue {
	return attribute.String("decision", decision)
}

func requirementAttr(requirement string) attribute.KeyValue {
	return attribute.String("requirement", requirement)
}
