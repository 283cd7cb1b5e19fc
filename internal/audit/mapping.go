package audit

import (
	"net/http"
	"strings"
)

// ActionResource holds action and resource derived from an HTTP route.
type ActionResource struct {
	Action   string
	Resource string
}

// routeOverrides names the payment flow routes by what they do rather than by path shape.
var routeOverrides = map[string]ActionResource{
	"POST /api/preauth":           {Action: "preauth", Resource: "payment"},
	"POST /api/send-otp":          {Action: "send", Resource: "challenge"},
	"POST /api/verify-otp":        {Action: "verify", Resource: "challenge"},
	"POST /api/receipts/verify":   {Action: "verify", Resource: "receipt"},
	"GET /api/merchant/analytics": {Action: "get", Resource: "analytics"},
	"GET /api/merchant/audit":     {Action: "list", Resource: "audit_log"},
}

// ParseRoute returns action and resource for a method and chi route pattern
// (e.g. "GET", "/api/receipts/{proofId}" -> get receipt).
// Without an override, the resource is the last literal path segment singularized, and the action
// follows the method: GET on a parameterized route is get, otherwise list; POST create; PUT and PATCH
// update; DELETE delete.
func ParseRoute(method, pattern string) ActionResource {
	if ar, ok := routeOverrides[method+" "+pattern]; ok {
		return ar
	}
	segments := strings.Split(strings.Trim(pattern, "/"), "/")
	resource := ""
	param := false
	for _, s := range segments {
		if s == "" || s == "api" {
			continue
		}
		if strings.HasPrefix(s, "{") {
			param = true
			continue
		}
		resource = s
		param = false
	}
	if resource == "" {
		return ActionResource{Action: strings.ToLower(method), Resource: "unknown"}
	}
	return ActionResource{Action: methodToAction(method, param), Resource: singular(resource)}
}

func methodToAction(method string, param bool) string {
	switch method {
	case http.MethodGet:
		if param {
			return "get"
		}
		return "list"
	case http.MethodPost:
		return "create"
	case http.MethodPut, http.MethodPatch:
		return "update"
	case http.MethodDelete:
		return "delete"
	default:
		return strings.ToLower(method)
	}
}

func singular(s string) string {
	s = strings.ReplaceAll(s, "-", "_")
	if strings.HasSuffix(s, "ies") {
		return strings.TrimSuffix(s, "ies") + "y"
	}
	if strings.HasSuffix(s, "s") && !strings.HasSuffix(s, "ss") {
		return strings.TrimSuffix(s, "s")
	}
	return s
}
