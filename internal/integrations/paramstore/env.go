package paramstore

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// Env resolves parameter names to environment variables. It backs local mode,
// where secrets come from the shell or a .env file instead of SSM.
type Env struct {
	vars map[string]string
}

// NewEnv maps full parameter names to environment variable names.
func NewEnv(vars map[string]string) *Env {
	cp := make(map[string]string, len(vars))
	for k, v := range vars {
		cp[k] = v
	}
	return &Env{vars: cp}
}

func (e *Env) GetParameter(_ context.Context, name string) (string, error) {
	name = strings.TrimSpace(name)
	key, ok := e.vars[name]
	if !ok {
		return "", fmt.Errorf("paramstore: no environment mapping for %q", name)
	}
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return "", fmt.Errorf("paramstore: environment variable %s is not set", key)
	}
	return v, nil
}
