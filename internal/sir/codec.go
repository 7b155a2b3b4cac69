package sir

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/vmihailenco/msgpack/v5"
)

// Current schema version - increment when the module file format changes
const moduleSchemaVersion uint16 = 1

// ModuleExt is the file extension of encoded modules.
const ModuleExt = ".sirpk"

// ErrSchemaMismatch is returned when a module file was written with a
// different schema version.
var ErrSchemaMismatch = errors.New("sir: module schema mismatch")

type modulePayload struct {
	Schema uint16
	Module *Module
}

// EncodeModule writes m to w in msgpack form.
func EncodeModule(w io.Writer, m *Module) error {
	if m == nil {
		return errors.New("sir: nil module")
	}
	enc := msgpack.NewEncoder(w)
	return enc.Encode(&modulePayload{Schema: moduleSchemaVersion, Module: m})
}

// DecodeModule reads a module written by EncodeModule.
func DecodeModule(r io.Reader) (*Module, error) {
	var p modulePayload
	dec := msgpack.NewDecoder(r)
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("sir: decode module: %w", err)
	}
	if p.Schema != moduleSchemaVersion {
		return nil, fmt.Errorf("%w: have %d, want %d", ErrSchemaMismatch, p.Schema, moduleSchemaVersion)
	}
	if p.Module == nil {
		return nil, errors.New("sir: module payload is empty")
	}
	return p.Module, nil
}

// MarshalModule returns the encoded bytes of m.
func MarshalModule(m *Module) ([]byte, error) {
	var buf bytes.Buffer
	if err := EncodeModule(&buf, m); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ReadModuleFile decodes the module stored at path.
func ReadModuleFile(path string) (*Module, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	m, err := DecodeModule(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// WriteModuleFile encodes m to path, replacing the file atomically.
func WriteModuleFile(path string, m *Module) error {
	dir := filepath.Dir(path)
	f, err := os.CreateTemp(dir, "tmp-*"+ModuleExt)
	if err != nil {
		return err
	}
	tmp := f.Name()
	defer func() {
		// no-op once renamed
		_ = os.Remove(tmp)
	}()
	if err := EncodeModule(f, m); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
