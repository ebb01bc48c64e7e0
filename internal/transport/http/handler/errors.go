package handler

const (
	errInternalServer     = "Internal server error"
	errEndpointNotFound   = "Endpoint not found"
	errEndpointArchived   = "Endpoint is archived"
	errSigningKeyExists   = "Signing key already exists, rotate it instead"
	errSigningKeyNotFound = "No signing key to rotate"
)
