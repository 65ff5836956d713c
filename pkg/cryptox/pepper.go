package cryptox

import (
	"os"
	"strings"
	"sync"
)

var (
	pepperOnce sync.Once
	pepper     string
	pepperPath string
)

// SetPepperPath configures where to load the password pepper from. Must be
// called before the first hash or verify operation.
func SetPepperPath(path string) {
	pepperPath = path
}

// GetPepper returns the process-wide password pepper. It is loaded once from
// the configured file, falling back to the AUTH_PEPPER environment variable.
// An empty pepper is allowed; hashing still works, just without the extra
// secret input.
func GetPepper() string {
	pepperOnce.Do(func() {
		if pepperPath != "" {
			if data, err := os.ReadFile(pepperPath); err == nil {
				pepper = strings.TrimSpace(string(data))
				return
			}
		}
		pepper = os.Getenv("AUTH_PEPPER")
	})
	return pepper
}

// ResetPepperForTesting resets the pepper singleton. Tests only.
func ResetPepperForTesting() {
	pepperOnce = sync.Once{}
	pepper = ""
}
