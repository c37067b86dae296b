package aplemitter

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	genspec "github.com/mark3labs/openapi2dyalog/internal/spec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const petstore = `openapi: 3.0.0
info:
  title: Petstore
  version: "2.1.0"
  description: |
    Pets and their owners.
    Second line.
servers:
  - url: https://pets.example.com/v2
security:
  - apiKey: []
paths:
  /pets/{petId}:
    get:
      operationId: getPet
      summary: Fetch a pet | by id
      tags: [pets]
      parameters:
        - { in: path, name: petId, required: true, schema: { type: integer } }
        - { in: query, name: x, schema: { type: string } }
        - { in: header, name: X-Trace-Id, schema: { type: string } }
      responses:
        "200":
          description: the pet
          content:
            application/json:
              schema: { $ref: '#/components/schemas/Pet' }
  /pets:
    post:
      operationId: addPet
      tags: [pets]
      security: []
      requestBody:
        content:
          application/json:
            schema:
              type: object
              properties:
                name: { type: string }
      responses: { "201": { description: created } }
  /upload:
    post:
      operationId: upload
      tags: [files]
      requestBody:
        content:
          multipart/form-data:
            schema:
              type: object
              properties:
                file: { type: string, format: binary }
      responses: { "200": { description: ok } }
components:
  securitySchemes:
    apiKey: { type: apiKey, in: header, name: X-Key }
  schemas:
    Pet:
      type: object
      description: A pet.
      required: [name]
      properties:
        name: { type: string }
        owner: { $ref: '#/components/schemas/Owner' }
    Owner:
      type: object
      properties:
        id: { type: integer }
`

var fixedClock = func() time.Time { return time.Date(2025, 3, 4, 23, 30, 0, 0, time.UTC) }

func buildModel(t *testing.T, src string) *genspec.ServiceModel {
	t.Helper()
	doc, err := genspec.LoadData(context.Background(), []byte(src))
	require.NoError(t, err)
	sm, err := genspec.BuildServiceModel(context.Background(), doc,
		genspec.WithClock(fixedClock), genspec.WithNamespace("Petstore"))
	require.NoError(t, err)
	return sm
}

func readFile(t *testing.T, dir, rel string) string {
	t.Helper()
	b, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(rel)))
	require.NoError(t, err)
	return string(b)
}

func TestEmit_DryRun_Plan(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	res, err := Emit(context.Background(), buildModel(t, petstore), Options{OutDir: dir, DryRun: true})
	require.NoError(t, err)

	var have []string
	for _, pf := range res.Planned {
		have = append(have, pf.RelPath)
		assert.Equal(t, StatusCreate, pf.Status)
		assert.Positive(t, pf.Size)
	}
	assert.Equal(t, []string{
		"APLSource/Client.aplc",
		"APLSource/Version.aplf",
		"APLSource/_tags/files/Upload.aplf",
		"APLSource/_tags/pets/AddPet.aplf",
		"APLSource/_tags/pets/GetPet.aplf",
		"APLSource/models/AddPetRequest.aplc",
		"APLSource/models/Owner.aplc",
		"APLSource/models/Pet.aplc",
		"APLSource/utils.apln",
		"README.md",
	}, have)
	assert.Zero(t, res.Written)

	entries, _ := os.ReadDir(dir)
	assert.Empty(t, entries, "dry-run must not write")
}

func TestEmit_WriteAndContents(t *testing.T) {
	t.Parallel()
	dir := filepath.Join(t.TempDir(), "out")

	res, err := Emit(context.Background(), buildModel(t, petstore), Options{OutDir: dir})
	require.NoError(t, err)
	assert.Equal(t, len(res.Planned), res.Written)

	getPet := readFile(t, dir, "APLSource/_tags/pets/GetPet.aplf")
	assert.True(t, strings.HasPrefix(getPet, " r←client GetPet argsNs;req\n⍝ GET /pets/{petId}\n⍝ Fetch a pet | by id\n"), getPet)
	assert.Contains(t, getPet, " req.Path←'/pets/',(⍕argsNs.petId)\n")
	assert.Contains(t, getPet, " req.Query←argsNs ##.##.utils.Pick ,⊂((,'x') (,'x'))\n")
	assert.Contains(t, getPet, " req.Headers←argsNs ##.##.utils.Pick ,⊂('X-Trace-Id' '⍙X⍙45⍙Trace⍙45⍙Id')\n")
	assert.Contains(t, getPet, " req.Security←(⊂'apiKey')\n")
	assert.Contains(t, getPet, "⍝ 200 → pet the pet\n")
	assert.Contains(t, getPet, " req.Body←''\n")

	addPet := readFile(t, dir, "APLSource/_tags/pets/AddPet.aplf")
	assert.Contains(t, addPet, "⍝ Request body: application/json (AddPetRequest)\n")
	assert.Contains(t, addPet, " req.Security←⍬\n")
	assert.NotContains(t, addPet, "⍝ Security:")

	upload := readFile(t, dir, "APLSource/_tags/files/Upload.aplf")
	assert.Contains(t, upload, "⍝   file (binary)\n")
	assert.Contains(t, upload, " req.Body←argsNs ##.##.utils.Pick ,⊂('file' 'file')\n")

	pet := readFile(t, dir, "APLSource/models/Pet.aplc")
	assert.True(t, strings.HasPrefix(pet, ":Class Pet\n⍝ A pet.\n"), pet)
	assert.Contains(t, pet, "    :Field Public name\n    ⍝ type: str, required\n")
	assert.Contains(t, pet, "    ⍝ type: owner, model: owner\n")
	assert.Contains(t, pet, "      r←('name' 'name')('owner' 'owner')\n")

	synthetic := readFile(t, dir, "APLSource/models/AddPetRequest.aplc")
	assert.Contains(t, synthetic, "⍝ Request body of AddPet\n")

	client := readFile(t, dir, "APLSource/Client.aplc")
	assert.True(t, strings.HasPrefix(client, ":Class Client\n⍝ Petstore 2.1.0\n⍝\n⍝ Pets and their owners.\n⍝ Second line.\n"), client)
	assert.Contains(t, client, "    :Field Public BaseURL←'https://pets.example.com/v2'\n")
	assert.Contains(t, client, "    :Field Public Shared ReadOnly pets←##._tags.pets\n    :Field Public Shared ReadOnly files←##._tags.files\n")

	version := readFile(t, dir, "APLSource/Version.aplf")
	assert.Contains(t, version, " r←'Petstore' '2.1.0' '2025-03-04'\n")

	readme := readFile(t, dir, "README.md")
	assert.True(t, strings.HasPrefix(readme, "# Petstore\n"), readme)
	assert.Contains(t, readme, "### Pets\n")
	assert.Contains(t, readme, "| `Petstore._tags.pets.GetPet` | GET | `/pets/{petId}` | Fetch a pet \\| by id |\n")
	assert.Contains(t, readme, "⎕NEW Client ('https://pets.example.com/v2')")
}

func TestEmit_RerunIsUnchanged(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	sm := buildModel(t, petstore)

	_, err := Emit(context.Background(), sm, Options{OutDir: dir})
	require.NoError(t, err)

	res, err := Emit(context.Background(), sm, Options{OutDir: dir})
	require.NoError(t, err)
	assert.Zero(t, res.Written)
	for _, pf := range res.Planned {
		assert.Equal(t, StatusUnchanged, pf.Status, pf.RelPath)
	}

	// A hand edit is reported as an update and overwritten.
	p := filepath.Join(dir, "APLSource", "Version.aplf")
	require.NoError(t, os.WriteFile(p, []byte("edited"), 0o644))
	res, err = Emit(context.Background(), sm, Options{OutDir: dir})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Written)
	assert.NotEqual(t, "edited", readFile(t, dir, "APLSource/Version.aplf"))
}

func TestEmit_NoForce_NonEmptyDir(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "existing.txt"), []byte("x"), 0o600))
	sm := buildModel(t, petstore)

	_, err := Emit(context.Background(), sm, Options{OutDir: dir})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--force")

	_, err = Emit(context.Background(), sm, Options{OutDir: dir, Force: true})
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "existing.txt"))
}

func TestEmit_CopiesSpecAndUsesTemplateDir(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	specPath := filepath.Join(root, "petstore.yaml")
	require.NoError(t, os.WriteFile(specPath, []byte(petstore), 0o600))
	tmplDir := filepath.Join(root, "templates")
	require.NoError(t, os.MkdirAll(tmplDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(tmplDir, VersionTemplate),
		[]byte(` r←Version
 r←{{ quote .Document.Version }}
`), 0o600))

	out := filepath.Join(root, "out")
	_, err := Emit(context.Background(), buildModel(t, petstore), Options{
		OutDir:      out,
		SpecPath:    specPath,
		TemplateDir: tmplDir,
	})
	require.NoError(t, err)

	assert.Equal(t, petstore, readFile(t, out, "petstore.yaml"))
	assert.Equal(t, " r←Version\n r←'2.1.0'\n", readFile(t, out, "APLSource/Version.aplf"))
	assert.Contains(t, readFile(t, out, "README.md"), "from `petstore.yaml`")
}

func TestEmit_BadTemplate(t *testing.T) {
	t.Parallel()
	tmplDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tmplDir, ModelTemplate), []byte("{{ .Model.ClassName "), 0o600))

	_, err := Emit(context.Background(), buildModel(t, petstore), Options{OutDir: t.TempDir(), TemplateDir: tmplDir, DryRun: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), ModelTemplate)
}

func TestEmit_InvalidOptions(t *testing.T) {
	t.Parallel()
	_, err := Emit(context.Background(), nil, Options{OutDir: "x"})
	assert.Error(t, err)
	_, err = Emit(context.Background(), &genspec.ServiceModel{}, Options{OutDir: "x"})
	assert.Error(t, err)
	_, err = Emit(context.Background(), buildModel(t, petstore), Options{})
	assert.Error(t, err)
}

func TestSpecFileName(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "", specFileName(""))
	assert.Equal(t, "", specFileName("https://example.com/openapi.yaml"))
	assert.Equal(t, "api.json", specFileName(filepath.Join("specs", "api.json")))
}

func TestEmit_TagsCollidingAfterNormalization(t *testing.T) {
	t.Parallel()
	sm := buildModel(t, `openapi: 3.0.0
info: { title: T, version: "1" }
paths:
  /a:
    get:
      operationId: list_pets
      tags: [Pets]
      responses: { "200": { description: ok } }
  /b:
    get:
      operationId: listPets
      tags: [pets]
      responses: { "200": { description: ok } }
`)

	res, err := Emit(context.Background(), sm, Options{OutDir: t.TempDir(), DryRun: true})
	require.NoError(t, err)

	var have []string
	for _, pf := range res.Planned {
		have = append(have, pf.RelPath)
	}
	assert.Contains(t, have, "APLSource/_tags/pets/ListPets.aplf")
	assert.Contains(t, have, "APLSource/_tags/pets2/ListPets.aplf")
}
