package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// MinimalSpec describes a single endpoint, enough for any generator target.
const MinimalSpec = `openapi: 3.0.3
info:
  title: OpenAI
  version: 1.0.0
servers:
  - url: https://api.openai.com/v1
paths:
  /models:
    get:
      operationId: listModels
      responses:
        "200":
          description: OK
          content:
            application/json:
              schema:
                $ref: "#/components/schemas/ListModelsResponse"
components:
  schemas:
    ListModelsResponse:
      type: object
      properties:
        object:
          type: string
        data:
          type: array
          items:
            type: string
`

// WriteSpec writes MinimalSpec to dir/name and returns its path.
func WriteSpec(t *testing.T, dir, name string) string {
	t.Helper()

	specPath := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(specPath), 0o755))
	require.NoError(t, os.WriteFile(specPath, []byte(MinimalSpec), 0o644))
	return specPath
}
