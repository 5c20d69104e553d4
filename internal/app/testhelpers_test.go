package app

import (
	"strings"
	"testing"

	"github.com/spf13/afero"
)

const testRoot = "/cfg/aperture"

// petsDoc is a small API; {{URL}} is replaced by the test server URL.
const petsDoc = `
openapi: 3.0.3
info:
  title: Pets
  version: 2.0.0
servers:
  - url: {{URL}}
tags:
  - name: pets
paths:
  /pets:
    post:
      operationId: createPet
      tags: [pets]
      requestBody:
        required: true
        content:
          application/json:
            schema:
              type: object
              required: [name]
              properties:
                name: {type: string}
      responses:
        "201": {description: created}
  /pets/{petId}:
    get:
      operationId: getPet
      summary: Fetch one pet
      tags: [pets]
      parameters:
        - name: petId
          in: path
          required: true
          schema: {type: string}
      responses:
        "200": {description: ok}
  /health:
    get:
      operationId: health
      responses:
        "200": {description: ok}
`

func petsSpec(url string) []byte {
	return []byte(strings.ReplaceAll(petsDoc, "{{URL}}", url))
}

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	return NewManager(afero.NewMemMapFs(), testRoot, nil)
}

func mustAdd(t *testing.T, m *Manager, name, url string) {
	t.Helper()
	if _, err := m.AddSpec(name, petsSpec(url), false); err != nil {
		t.Fatalf("AddSpec(%s): %v", name, err)
	}
}
