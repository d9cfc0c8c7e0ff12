package provider

import "fmt"

// AuthError indicates invalid or expired credentials. The gateway retries
// once through a token refresh before surfacing this; after a failed refresh
// the gateway fails fast with it until re-initialized.
type AuthError struct {
	Provider string
	Err      error
}

func (e *AuthError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: authentication failed", e.Provider)
	}
	return fmt.Sprintf("%s: authentication failed: %v", e.Provider, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// NetworkError covers transport failures and timeouts. The acquirer treats
// it as transient and advances to the next provider.
type NetworkError struct {
	Provider string
	Err      error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: network error: %v", e.Provider, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// NotFoundError means the provider does not know the requested symbol.
type NotFoundError struct {
	Provider string
	Symbol   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s: symbol %s not found", e.Provider, e.Symbol)
}

// MalformedPayloadError means the provider responded but the payload failed
// shape validation. Treated like a network error for fallback purposes.
type MalformedPayloadError struct {
	Provider string
	Err      error
}

func (e *MalformedPayloadError) Error() string {
	return fmt.Sprintf("%s: malformed payload: %v", e.Provider, e.Err)
}

func (e *MalformedPayloadError) Unwrap() error { return e.Err }
