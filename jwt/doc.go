// Package jwt issues and verifies the HS256 identity tokens used by the
// TOKEN strategy. Tokens are self-contained and never stored server-side.
package jwt
