// utils/http.go
package utils

import (
	"net/http"
	"time"
)

// Shared client for outbound calls (screenshot fetches, auth validation).
var HTTPClient = &http.Client{
	Timeout: 30 * time.Second,
}
