package atlas

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/janelia-flyem/cardiowave/cardio"
)

// datasetSchema is the JSON schema every JSON-encoded dataset must satisfy.
const datasetSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["nx", "ny", "mx", "my", "fullWidth", "fullHeight", "fullTexelIndex"],
	"properties": {
		"nx": {"type": "integer", "minimum": 1},
		"ny": {"type": "integer", "minimum": 1},
		"mx": {"type": "integer", "minimum": 1},
		"my": {"type": "integer", "minimum": 1},
		"fullWidth": {"type": "integer", "minimum": 1},
		"fullHeight": {"type": "integer", "minimum": 1},
		"fullTexelIndex": {"type": "array", "items": {"type": "integer"}},
		"values": {"type": "array", "items": {"type": "number"}},
		"threshold": {"type": "number"},
		"length": {"type": "number", "minimum": 0}
	}
}`

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = jsonschema.CompileString("dataset.json", datasetSchema)
	})
	return schema, schemaErr
}

// Decode reads a JSON dataset, validates it against the dataset schema and checks its
// metadata.  Any problem with the content is returned as a MalformedDatasetError.
func Decode(r io.Reader) (*Dataset, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, cardio.NewMalformedDatasetError("", "is not valid JSON: %v", err)
	}
	sch, err := compiledSchema()
	if err != nil {
		return nil, fmt.Errorf("unable to compile dataset schema: %v", err)
	}
	if err := sch.Validate(raw); err != nil {
		return nil, cardio.NewMalformedDatasetError("", "fails schema validation: %v", err)
	}
	ds := new(Dataset)
	if err := json.Unmarshal(data, ds); err != nil {
		return nil, cardio.NewMalformedDatasetError("", "cannot be decoded: %v", err)
	}
	if err := ds.Check(); err != nil {
		return nil, err
	}
	return ds, nil
}

// DecodeMsgpack reads a dataset in its msgpack form.
func DecodeMsgpack(r io.Reader) (*Dataset, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	ds := new(Dataset)
	if _, err := ds.UnmarshalMsg(data); err != nil {
		return nil, cardio.NewMalformedDatasetError("", "bad msgpack encoding: %v", err)
	}
	if err := ds.Check(); err != nil {
		return nil, err
	}
	return ds, nil
}

// ReadFile reads a dataset from a file, choosing the format by file extension:
// ".msgp" for msgpack, anything else as JSON.
func ReadFile(filename string) (*Dataset, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	timedLog := cardio.NewTimeLog()
	var ds *Dataset
	if strings.ToLower(filepath.Ext(filename)) == ".msgp" {
		ds, err = DecodeMsgpack(f)
	} else {
		ds, err = Decode(f)
	}
	if err != nil {
		return nil, fmt.Errorf("dataset %q: %w", filename, err)
	}
	timedLog.Infof("Read dataset %q with %d atlas texels", filename, ds.NumTexels())
	return ds, nil
}

// WriteFile writes the dataset to a file using the same extension rule as ReadFile.
func (ds *Dataset) WriteFile(filename string) error {
	var data []byte
	var err error
	if strings.ToLower(filepath.Ext(filename)) == ".msgp" {
		data, err = ds.MarshalMsg(nil)
	} else {
		data, err = json.Marshal(ds)
	}
	if err != nil {
		return err
	}
	return os.WriteFile(filename, data, 0644)
}
