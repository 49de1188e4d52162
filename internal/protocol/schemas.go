package protocol

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"path"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.schema.json
var schemaFS embed.FS

const schemaBase = "https://shopscout.ai/schemas/"

// schemaFor maps client message types to the schema file that covers them.
var schemaFor = map[string]string{
	TypeHello:     "hello.schema.json",
	TypeSearch:    "search.schema.json",
	TypeViewAll:   "view_all.schema.json",
	TypeTeleport:  "shop_ref.schema.json",
	TypeHide:      "shop_ref.schema.json",
	TypeUnhide:    "shop_ref.schema.json",
	TypeHideAll:   "owner.schema.json",
	TypeUnhideAll: "owner.schema.json",
}

// Validator checks raw client frames against the embedded schemas.
type Validator struct {
	byType map[string]*jsonschema.Schema
}

func NewValidator() (*Validator, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	files, err := fs.Glob(schemaFS, "schemas/*.schema.json")
	if err != nil {
		return nil, err
	}
	for _, f := range files {
		b, err := schemaFS.ReadFile(f)
		if err != nil {
			return nil, err
		}
		if err := c.AddResource(schemaBase+path.Base(f), bytes.NewReader(b)); err != nil {
			return nil, fmt.Errorf("schema %s: %w", f, err)
		}
	}
	v := &Validator{byType: map[string]*jsonschema.Schema{}}
	compiled := map[string]*jsonschema.Schema{}
	for typ, name := range schemaFor {
		s, ok := compiled[name]
		if !ok {
			s, err = c.Compile(schemaBase + name)
			if err != nil {
				return nil, fmt.Errorf("compile %s: %w", name, err)
			}
			compiled[name] = s
		}
		v.byType[typ] = s
	}
	return v, nil
}

// Validate reports whether raw is a well-formed client message of type typ.
// Types without a schema are rejected.
func (v *Validator) Validate(typ string, raw []byte) error {
	s, ok := v.byType[typ]
	if !ok {
		return fmt.Errorf("unsupported message type %q", typ)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc interface{}
	if err := dec.Decode(&doc); err != nil {
		return err
	}
	if t, _ := dec.Token(); t != nil {
		return fmt.Errorf("invalid character %v after top-level value", t)
	}
	return s.Validate(doc)
}
